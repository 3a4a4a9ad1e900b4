package config

// Singleton is the process wide manager, options register themselves on it
// from package init before anything runs.
var Singleton = NewConfigManager()

func AddSource(source ConfigSource) {
	Singleton.AddSource(source)
}

func RegisterOption(name, desc string, defaultValue interface{}) *ConfigOption {
	return Singleton.RegisterOption(name, desc, defaultValue)
}

func Load() {
	Singleton.Load()
}
