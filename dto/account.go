package dto

// AccountConfig is one entry of the accounts import file.
type AccountConfig struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Host     string   `json:"host,omitempty"`
	Port     int      `json:"port,omitempty"`
	Provider string   `json:"provider,omitempty"`
	Security string   `json:"security,omitempty"`
	Folders  []string `json:"folders,omitempty"`
}
