package common

import (
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// CreateKubernetesClient builds a client-go client, either from the
// pod's mounted service account (inCluster) or from the first
// kubeconfig clientcmd finds on disk, for running the allocator
// standalone during development.
func CreateKubernetesClient(inCluster bool) (kubernetes.Interface, error) {
	config, err := loadKubernetesConfig(inCluster)
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(config)
}

func loadKubernetesConfig(inCluster bool) (*rest.Config, error) {
	if inCluster {
		return rest.InClusterConfig()
	}
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
}
