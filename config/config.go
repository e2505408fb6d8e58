package config

import (
	"fmt"
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	// Secrets for the non-tenant surfaces. The tenant surface authenticates
	// with per-tenant bearer keys stored in the registry.
	InternalSecret string `yaml:"internal_secret" json:"-"`
	AdminSecret    string `yaml:"admin_secret" json:"-"`
	// TenantSecret seeds the API key of the default tenant on first start.
	TenantSecret string `yaml:"tenant_secret" json:"-"`
	// CallbackURL is the control-plane base URL advertised to connector
	// containers so they can reach the internal state API.
	CallbackURL string `yaml:"callback_url" json:"callback_url"`
}

type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"-"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type JobConfig struct {
	// NodeProbeInterval is the cron spec for the node probe job,
	// e.g. "@every 5m". Empty disables the job.
	NodeProbeInterval string `yaml:"node_probe_interval" json:"node_probe_interval"`
}

type AppConfig struct {
	System   SysConfig `yaml:"system" json:"system"`
	Web      WebConfig `yaml:"web" json:"web"`
	Database DBConfig  `yaml:"database" json:"database"`
	Logger   LogConfig `yaml:"logger" json:"logger"`
	Job      JobConfig `yaml:"job" json:"job"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "waplane",
		Location: "UTC",
		Workdir:  "/var/waplane",
		Debug:    false,
	},
	Web: WebConfig{
		Host:        "0.0.0.0",
		Port:        1899,
		CallbackURL: "http://127.0.0.1:1899",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "waplane",
		User:     "postgres",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: false,
		Filename:   "/var/waplane/waplane.log",
	},
	Job: JobConfig{
		NodeProbeInterval: "@every 5m",
	},
}

// LoadConfig reads the yaml configuration file and applies environment
// overrides. A missing file is not an error; defaults plus environment
// are enough to run.
func LoadConfig(cfile string) *AppConfig {
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				panic(fmt.Sprintf("config file %s parse error: %v", cfile, err))
			}
		}
	}
	setEnvValue("WAPLANE_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvBoolValue("WAPLANE_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("WAPLANE_DB_TYPE", &cfg.Database.Type)
	setEnvValue("WAPLANE_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("WAPLANE_DB_PORT", &cfg.Database.Port)
	setEnvValue("WAPLANE_DB_NAME", &cfg.Database.Name)
	setEnvValue("WAPLANE_DB_USER", &cfg.Database.User)
	setEnvValue("WAPLANE_DB_PWD", &cfg.Database.Passwd)

	setEnvValue("WAPLANE_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("WAPLANE_WEB_PORT", &cfg.Web.Port)
	setEnvValue("WAPLANE_TENANT_SECRET", &cfg.Web.TenantSecret)
	setEnvValue("WAPLANE_INTERNAL_SECRET", &cfg.Web.InternalSecret)
	setEnvValue("WAPLANE_ADMIN_SECRET", &cfg.Web.AdminSecret)
	setEnvValue("WAPLANE_CALLBACK_URL", &cfg.Web.CallbackURL)

	setEnvValue("WAPLANE_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvValue("WAPLANE_NODE_PROBE_INTERVAL", &cfg.Job.NodeProbeInterval)
	return cfg
}

func setEnvValue(name string, val *string) {
	if v := os.Getenv(name); v != "" {
		*val = v
	}
}

func setEnvIntValue(name string, val *int) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToInt(v)
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToBool(v)
	}
}
