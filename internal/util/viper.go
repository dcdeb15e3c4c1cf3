package util

import (
	"strings"
	"unicode"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the inspected environment variables.
const EnvPrefix = "STATSD"

var envKeyReplacer = strings.NewReplacer("-", "_", ".", "_")

// envPrefix is the environment prefix of the named section, STATSD_<SECTION> for sections.
func envPrefix(section string) string {
	if section == "" {
		return EnvPrefix
	}
	return EnvPrefix + "_" + strings.ToUpper(envKeyReplacer.Replace(section))
}

// InitViper makes v read STATSD_* environment variables, or STATSD_<SECTION>_* for a section.
// Sub vipers do not inherit these settings, so it must be run on each of them.
func InitViper(v *viper.Viper, section string) {
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.SetEnvPrefix(envPrefix(section))
	v.SetTypeByDefaultValue(true)
	v.AutomaticEnv()
}

// GetSubViper returns the named section of v, or an empty viper if the section is absent.
// Either way the section's environment variables are honoured.
func GetSubViper(v *viper.Viper, section string) *viper.Viper {
	sub := v.Sub(section)
	if sub == nil {
		sub = viper.New()
	}
	InitViper(sub, section)
	return sub
}

// GetStringList reads key as a list of names separated by commas or whitespace. Flags and
// environment variables hold a single string, config files may hold a list.
func GetStringList(v *viper.Viper, key string) []string {
	var names []string
	for _, value := range v.GetStringSlice(key) {
		names = append(names, strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})...)
	}
	return names
}
