package rack

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/G-Research/executor-allocator/internal/domain"
)

// TopologyLabel is the well-known node label this resolver reads its
// rack path from, matching the label kubelet/cloud-controller-manager
// populate for zone-aware scheduling.
const TopologyLabel = "topology.kubernetes.io/zone"

// KubernetesNodeResolver resolves a Host to a Rack by treating the host
// as a Kubernetes node name and reading its topology label — the same
// node object the KubernetesStore's Allocate already lists to compute
// numClusterNodes, just fetched by name here since Resolve deals with
// one host at a time.
type KubernetesNodeResolver struct {
	client kubernetes.Interface
}

// NewKubernetesNodeResolver constructs a resolver bound to client. Wrap
// the result in a CachedResolver before handing it to the allocator —
// this implementation makes one API call per uncached host.
func NewKubernetesNodeResolver(client kubernetes.Interface) *KubernetesNodeResolver {
	return &KubernetesNodeResolver{client: client}
}

func (r *KubernetesNodeResolver) Resolve(host domain.Host) (domain.Rack, error) {
	node, err := r.client.CoreV1().Nodes().Get(context.Background(), string(host), metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	zone, ok := node.Labels[TopologyLabel]
	if !ok {
		return "", fmt.Errorf("node %q has no %s label", host, TopologyLabel)
	}
	return domain.Rack(zone), nil
}
