package collector

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/marek-kar/codeaudit/pkg/catalog"
)

const (
	configMapScheme     = "configmap://"
	DefaultConfigMapKey = "rules.yaml"
)

// Source supplies the raw rule catalog document.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	String() string
}

type FileSource struct {
	Path string
}

func (s FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path)
}

func (s FileSource) String() string { return s.Path }

// ConfigMapSource reads the catalog from a key of a Kubernetes ConfigMap so
// a cluster-wide ruleset can be shared by CI jobs.
type ConfigMapSource struct {
	Client    kubernetes.Interface
	Namespace string
	Name      string
	Key       string
}

func (s ConfigMapSource) Read(ctx context.Context) ([]byte, error) {
	cm, err := s.Client.CoreV1().ConfigMaps(s.Namespace).Get(ctx, s.Name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get configmap %s/%s: %w", s.Namespace, s.Name, err)
	}

	key := s.Key
	if key == "" {
		key = DefaultConfigMapKey
	}
	if v, ok := cm.Data[key]; ok {
		return []byte(v), nil
	}
	if v, ok := cm.BinaryData[key]; ok {
		return v, nil
	}
	if s.Key == "" && len(cm.Data) == 1 {
		for _, v := range cm.Data {
			return []byte(v), nil
		}
	}

	keys := make([]string, 0, len(cm.Data))
	for k := range cm.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return nil, fmt.Errorf("configmap %s/%s has no key %q (keys: %s)", s.Namespace, s.Name, key, strings.Join(keys, ", "))
}

func (s ConfigMapSource) String() string {
	ref := configMapScheme + s.Namespace + "/" + s.Name
	if s.Key != "" {
		ref += "/" + s.Key
	}
	return ref
}

// IsConfigMapRef reports whether a --ruleset value names a ConfigMap.
func IsConfigMapRef(ref string) bool {
	return strings.HasPrefix(ref, configMapScheme)
}

// ParseConfigMapRef parses configmap://namespace/name[/key].
func ParseConfigMapRef(ref string) (namespace, name, key string, err error) {
	rest := strings.TrimPrefix(ref, configMapScheme)
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid configmap reference %q, want %snamespace/name[/key]", ref, configMapScheme)
	}
	if len(parts) == 3 {
		key = parts[2]
	}
	return parts[0], parts[1], key, nil
}

// NewSource resolves a --ruleset value. The Kubernetes client is only built
// for ConfigMap references.
func NewSource(ref string, opts Options) (Source, error) {
	if !IsConfigMapRef(ref) {
		return FileSource{Path: ref}, nil
	}
	ns, name, key, err := ParseConfigMapRef(ref)
	if err != nil {
		return nil, err
	}
	client, err := NewKubeClient(opts.Kubeconfig)
	if err != nil {
		return nil, err
	}
	return ConfigMapSource{Client: client, Namespace: ns, Name: name, Key: key}, nil
}

// LoadCatalog reads and validates a catalog. Read failures and
// *catalog.ConfigError are both load errors for the caller.
func LoadCatalog(ctx context.Context, src Source) (*catalog.Catalog, error) {
	data, err := src.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ruleset %s: %w", src, err)
	}
	return catalog.Parse(src.String(), data)
}
