// Package config provides configuration loading and validation for the
// unityconfig tool.
//
// The tool configuration says where things live: the variant workspace and
// its resources folder, the on-disk cache of the last remote config, and
// the Firebase project that serves remote config. It is unrelated to the
// runtime loading policy (source, fallback, cache, fast loading), which is
// published next to the configs as build1-config-settings.json and read by
// package settings.
//
// # Configuration Structure
//
//	project:
//	  root: .                        # variant workspace (Config/<name>/config.json)
//	  resources: Assets/Resources    # published config.json / config_fallback.json
//	cache:
//	  dir: ~/.cache/unityconfig      # config_cache_<version>.json lives here
//	  version: ""                    # empty means the build version
//	firebase:
//	  endpoint: https://firebaseremoteconfig.googleapis.com
//	  project_id: my-project
//	  api_key: AIza...
//	  app_id: 1:123:android:abc
//	  request_timeout: 10s
//
// # Basic Usage
//
//	cfg, err := config.New("").Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// If no configuration file exists, Default is returned. Fields missing from
// an existing file keep their default values.
//
// # Error Handling
//
//   - ErrInvalidConfig: configuration validation failed
//   - ErrNoConfig: configuration file not found (Load returns defaults)
package config
