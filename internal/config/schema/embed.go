package schema

import _ "embed"

//go:embed devenv-composer-config.schema.json
var ConfigSchema []byte

//go:embed component-deps.schema.json
var ComponentDepsSchema []byte

//go:embed hardware-profiles.schema.json
var HardwareProfilesSchema []byte
