package docker

import (
	"time"
)

// Label key suffixes, joined to the configured prefix.
const (
	labelManaged   = "managed"
	labelSetup     = "setup"
	labelDirectory = "setup-directory"
	labelProvider  = "provider"
	labelImage     = "image"
	labelCreated   = "created"

	// ManagedLabelValue is the value for the managed label.
	ManagedLabelValue = "true"
)

// LabelConfig namespaces the labels of managed containers.
type LabelConfig struct {
	Prefix string
	// Extra labels added to every container, e.g. test markers.
	Extra map[string]string
}

// Owner identifies the setup a container belongs to.
type Owner struct {
	SetupName      string
	SetupDirectory string
	Provider       string
}

// Key returns the fully qualified label key for suffix.
func (l LabelConfig) Key(suffix string) string {
	return l.Prefix + "." + suffix
}

// ManagedKey returns the key of the managed marker label.
func (l LabelConfig) ManagedKey() string { return l.Key(labelManaged) }

// ContainerLabels returns labels for a new container.
func (l LabelConfig) ContainerLabels(owner Owner, image string) map[string]string {
	labels := make(map[string]string, len(l.Extra)+6)
	for k, v := range l.Extra {
		labels[k] = v
	}
	labels[l.Key(labelManaged)] = ManagedLabelValue
	labels[l.Key(labelImage)] = image
	labels[l.Key(labelCreated)] = time.Now().Format(time.RFC3339)
	if owner.SetupName != "" {
		labels[l.Key(labelSetup)] = owner.SetupName
	}
	if owner.SetupDirectory != "" {
		labels[l.Key(labelDirectory)] = owner.SetupDirectory
	}
	if owner.Provider != "" {
		labels[l.Key(labelProvider)] = owner.Provider
	}
	return labels
}

// IsManaged reports whether labels carry the managed marker.
func (l LabelConfig) IsManaged(labels map[string]string) bool {
	return labels[l.ManagedKey()] == ManagedLabelValue
}

// IsOwnedBy reports whether labels mark a managed container of owner.
func (l LabelConfig) IsOwnedBy(labels map[string]string, owner Owner) bool {
	return l.IsManaged(labels) &&
		labels[l.Key(labelSetup)] == owner.SetupName &&
		labels[l.Key(labelDirectory)] == owner.SetupDirectory &&
		labels[l.Key(labelProvider)] == owner.Provider
}
