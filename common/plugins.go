package common

type PluginCategory struct {
	Name string
}

var (
	PluginCategoryCore           = &PluginCategory{Name: "Core"}
	PluginCategoryModeration     = &PluginCategory{Name: "Moderation"}
	PluginCategoryAccountability = &PluginCategory{Name: "Accountability"}
)

type PluginInfo struct {
	Name     string // Human readable name of the plugin
	SysName  string // snake_case version of the name in lower case
	Category *PluginCategory
}

// Plugin is the bare minimum interface all components register with the core.
type Plugin interface {
	PluginInfo() *PluginInfo
}

// RegisterPlugin adds a plugin to the core registry, should only be called
// during startup.
func (c *Core) RegisterPlugin(plugin Plugin) {
	c.plugins = append(c.plugins, plugin)
	logger.Info("Registered plugin: " + plugin.PluginInfo().Name)
}

// Plugins returns the registered plugins in registration order.
func (c *Core) Plugins() []Plugin {
	return c.plugins
}
