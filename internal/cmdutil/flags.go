package cmdutil

import "github.com/spf13/pflag"

// AliasFlags makes each key of aliases an alternate spelling of the flag it
// maps to.
func AliasFlags(fs *pflag.FlagSet, aliases map[string]string) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if target, ok := aliases[name]; ok {
			name = target
		}
		return pflag.NormalizedName(name)
	})
}
