package views

// SiteConfig holds the settings the pages need.
type SiteConfig struct {
	Name     string // Page title
	Selector string // Form field that names the template
	Admin    bool   // Upload and delete require a login
}

// TemplateOption is one entry of the template picker.
type TemplateOption struct {
	Name        string
	Title       string
	Description string // sanitized HTML
}
