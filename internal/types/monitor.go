package types

type HttpConfig struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
	Timeout int               `json:"timeout"` // Timeout in seconds
}

type TCPConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Timeout int    `json:"timeout"`
}

type DNSConfig struct {
	Domain     string `json:"domain"`
	RecordType string `json:"record_type"` // A, AAAA, CNAME, MX, TXT, NS
	Timeout    int    `json:"timeout"`
}

type DatabaseConfig struct {
	Type     string `json:"type"` // "mysql", "postgres"
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	Timeout  int    `json:"timeout"`
	SSLMode  string `json:"ssl_mode,omitempty"` // For postgres
}
