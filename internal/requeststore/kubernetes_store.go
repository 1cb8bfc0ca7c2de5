package requeststore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/informers"
	informer "k8s.io/client-go/informers/core/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/G-Research/executor-allocator/internal/domain"
	"github.com/G-Research/executor-allocator/internal/resourcespec"
)

const (
	containerIdAnnotation = "executor-allocator/container-id"
	appIdLabel            = "executor-allocator/app-id"
	namespace             = "default"
)

// KubernetesStore is the concrete RequestStore (C2) backing this
// allocator: it represents a pending "container request" as a reserved
// Pod spec it has not yet submitted, and represents a granted container
// as a Pod that has been bound to a node (Pod.Spec.NodeName != ""). A
// request's node/rack locality hints become the Pod's preferred
// NodeAffinity terms, the same way the teacher's ClusterContext submits
// Pods with owner/label metadata and reads state back from informers
// rather than synchronous API calls.
//
// This mirrors an AMRMClient's client-side request bookkeeping followed
// by a server round trip: AddContainerRequest/RemoveContainerRequest/
// GetMatchingRequests only ever touch the in-memory pending set; the
// actual submission and state read-back happen inside Allocate.
type KubernetesStore struct {
	mu sync.Mutex

	client   kubernetes.Interface
	appId    string
	pending  []*Request
	podSpecs map[*Request]*v1.Pod // request -> not-yet-submitted pod

	submitted map[domain.ContainerId]*v1.Pod // requested, pod created but not yet bound
	released  map[domain.ContainerId]bool

	podInformer informer.PodInformer
	nodeLister  informer.NodeInformer
	stopper     chan struct{}
}

// NewKubernetesStore constructs a store bound to the given client and
// starts its pod/node informers.
func NewKubernetesStore(client kubernetes.Interface, appId string) *KubernetesStore {
	factory := informers.NewSharedInformerFactoryWithOptions(
		client, 0,
		informers.WithNamespace(namespace),
		informers.WithTweakListOptions(func(opts *metav1.ListOptions) {
			opts.LabelSelector = fmt.Sprintf("%s=%s", appIdLabel, appId)
		}),
	)

	store := &KubernetesStore{
		client:      client,
		appId:       appId,
		podSpecs:    map[*Request]*v1.Pod{},
		submitted:   map[domain.ContainerId]*v1.Pod{},
		released:    map[domain.ContainerId]bool{},
		podInformer: factory.Core().V1().Pods(),
		nodeLister:  factory.Core().V1().Nodes(),
		stopper:     make(chan struct{}),
	}

	store.podInformer.Lister()
	store.nodeLister.Lister()
	factory.Start(store.stopper)
	factory.WaitForCacheSync(store.stopper)

	return store
}

func (s *KubernetesStore) Stop() {
	close(s.stopper)
}

func (s *KubernetesStore) AddContainerRequest(req Request) *Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle := &req
	s.pending = append(s.pending, handle)
	s.podSpecs[handle] = buildPodSpec(s.appId, req)
	return handle
}

func (s *KubernetesStore) RemoveContainerRequest(req *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.pending {
		if r == req {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			delete(s.podSpecs, req)
			return
		}
	}
}

func (s *KubernetesStore) GetMatchingRequests(priority int32, location Location, spec resourcespec.Spec) [][]*Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*Request
	for _, r := range s.pending {
		if r.Priority != priority || r.Spec != spec {
			continue
		}
		if matchesLocation(r, location) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	result := make([][]*Request, len(matches))
	for i, m := range matches {
		result[i] = []*Request{m}
	}
	return result
}

// matchesLocation mirrors AMRMClient's ANY_LOCATION query: see the fake
// Store implementation for the full rationale.
func matchesLocation(r *Request, location Location) bool {
	if location == AnyLocation {
		return true
	}
	for _, n := range r.Nodes {
		if HostLocation(n) == location {
			return true
		}
	}
	for _, rk := range r.Racks {
		if RackLocation(rk) == location {
			return true
		}
	}
	return false
}

// Allocate submits every pending request's pod (if not already
// submitted), then reads back which submitted pods have bound to a node
// (newly "allocated" containers) and which have reached a terminal
// phase (newly "completed" containers).
func (s *KubernetesStore) Allocate(progress float32) (AllocateResponse, error) {
	s.mu.Lock()
	toSubmit := make(map[*Request]*v1.Pod, len(s.podSpecs))
	for r, pod := range s.podSpecs {
		toSubmit[r] = pod
	}
	s.mu.Unlock()

	for r, pod := range toSubmit {
		created, err := s.client.CoreV1().Pods(namespace).Create(context.Background(), pod, metav1.CreateOptions{})
		if err != nil {
			if apierrors.IsAlreadyExists(err) {
				continue
			}
			return AllocateResponse{}, errors.Wrapf(err, "submitting container request pod %s", pod.Name)
		}
		cid := domain.ContainerId(created.Annotations[containerIdAnnotation])
		s.mu.Lock()
		s.submitted[cid] = created
		delete(s.podSpecs, r)
		s.mu.Unlock()
	}

	nodes, err := s.nodeLister.Lister().List(labels.Everything())
	if err != nil {
		log.Warnf("failed to list cluster nodes: %s", err)
	}

	var allocated []domain.Container
	var completed []domain.ContainerStatus

	s.mu.Lock()
	for cid, pod := range s.submitted {
		current, err := s.podInformer.Lister().Pods(namespace).Get(pod.Name)
		if err != nil {
			continue
		}
		switch {
		case current.Status.Phase == v1.PodSucceeded || current.Status.Phase == v1.PodFailed:
			completed = append(completed, domain.ContainerStatus{
				ContainerId: cid,
				Host:        domain.Host(current.Spec.NodeName),
				ExitStatus:  exitStatusFromPod(current),
				Diagnostics: current.Status.Reason + ": " + current.Status.Message,
			})
			delete(s.submitted, cid)
		case current.Spec.NodeName != "":
			mem := current.Spec.Containers[0].Resources.Requests[v1.ResourceMemory]
			allocated = append(allocated, domain.Container{
				Id:       cid,
				Host:     domain.Host(current.Spec.NodeName),
				MemoryMB: mem.Value() / (1024 * 1024),
				Vcores:   int32(current.Spec.Containers[0].Resources.Requests.Cpu().Value()),
			})
			delete(s.submitted, cid)
		}
	}
	s.mu.Unlock()

	return AllocateResponse{
		Allocated:       allocated,
		Completed:       completed,
		NumClusterNodes: len(nodes),
	}, nil
}

func (s *KubernetesStore) ReleaseAssignedContainer(id domain.ContainerId) {
	s.mu.Lock()
	pod, ok := s.submitted[id]
	if ok {
		delete(s.submitted, id)
	}
	alreadyReleased := s.released[id]
	s.released[id] = true
	s.mu.Unlock()

	if !ok || alreadyReleased {
		return
	}
	err := s.client.CoreV1().Pods(namespace).Delete(context.Background(), pod.Name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		log.Warnf("failed to delete released container pod %s: %s", pod.Name, err)
	}
}

func buildPodSpec(appId string, req Request) *v1.Pod {
	cid := uuid.New().String()
	pod := &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name: fmt.Sprintf("%s-executor-%s", appId, cid),
			Labels: map[string]string{
				appIdLabel: appId,
			},
			Annotations: map[string]string{
				containerIdAnnotation: cid,
			},
		},
		Spec: v1.PodSpec{
			Containers: []v1.Container{
				{
					Name: "executor",
					Resources: v1.ResourceRequirements{
						Requests: v1.ResourceList{
							v1.ResourceMemory: *resource.NewQuantity(req.Spec.MemoryMB()*1024*1024, resource.BinarySI),
							v1.ResourceCPU:    *resource.NewQuantity(int64(req.Spec.Vcores()), resource.DecimalSI),
						},
					},
				},
			},
			RestartPolicy: v1.RestartPolicyNever,
		},
	}

	if len(req.Nodes) > 0 {
		terms := make([]v1.PreferredSchedulingTerm, 0, len(req.Nodes))
		for _, host := range req.Nodes {
			terms = append(terms, v1.PreferredSchedulingTerm{
				Weight: 100,
				Preference: v1.NodeSelectorTerm{
					MatchFields: []v1.NodeSelectorRequirement{
						{Key: "metadata.name", Operator: v1.NodeSelectorOpIn, Values: []string{string(host)}},
					},
				},
			})
		}
		pod.Spec.Affinity = &v1.Affinity{
			NodeAffinity: &v1.NodeAffinity{
				PreferredDuringSchedulingIgnoredDuringExecution: terms,
			},
		}
	}

	if req.LabelExpr != "" {
		pod.Spec.NodeSelector = map[string]string{"executor-allocator/pool": req.LabelExpr}
	}

	return pod
}

func exitStatusFromPod(pod *v1.Pod) domain.ExitStatus {
	if pod.Status.Phase == v1.PodSucceeded {
		return domain.ExitStatusSuccess
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Terminated != nil {
			return domain.ExitStatus(cs.State.Terminated.ExitCode)
		}
	}
	return domain.ExitStatus(-1)
}
