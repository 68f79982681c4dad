package taxonomy

// ProviderConfig captures provider-imposed naming constraints.
type ProviderConfig struct {
	MaxNameLength int
	PathSeparator string
	// NativeNesting is false for providers that only simulate hierarchy
	// through a naming convention (Gmail's "Parent/Child" labels).
	NativeNesting bool
	MaxDepth      int
}

var providerConfigs = map[string]ProviderConfig{
	"gmail": {MaxNameLength: 225, PathSeparator: "/", NativeNesting: false, MaxDepth: MaxDepth},
	"o365":  {MaxNameLength: 255, PathSeparator: `\`, NativeNesting: true, MaxDepth: MaxDepth},
}

// ConfigFor returns the constraints for a provider. Unknown providers get
// the most restrictive config so validation stays safe.
func ConfigFor(provider string) ProviderConfig {
	if cfg, ok := providerConfigs[provider]; ok {
		return cfg
	}
	return ProviderConfig{MaxNameLength: 225, PathSeparator: "/", MaxDepth: MaxDepth}
}
