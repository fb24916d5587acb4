// Package confloader loads layered configuration with koanf and watches
// configuration files with fsnotify.
//
// Sources, highest priority first:
//
//  1. Overrides (WithOverrides), typically command-line flags
//  2. Environment variables, sections separated by "__"
//  3. A YAML file, required (WithConfigFile) or optional (WithOptionalFile)
//  4. Values already set in the target struct
package confloader
