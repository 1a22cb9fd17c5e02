// Package smtpconfig offers optional, koanf-backed configuration loading
// for host applications that want to externalize an acceptor.Config
// instead of constructing it by hand. It deliberately carries no CLI
// framework: wiring a command-line front end is left to the host.
package smtpconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	kenv "github.com/knadh/koanf/providers/env"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/mitchellh/mapstructure"

	"smtpcore/acceptor"
)

// unmarshalConf enables weakly-typed decoding: env vars always arrive as
// strings, so "false"/"2048" must still decode into bool/int fields.
func unmarshalConf(out interface{}) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           out,
			WeaklyTypedInput: true,
			Metadata:         nil,
		},
	}
}

// Values mirrors acceptor.Config in a form koanf can unmarshal into
// directly (acceptor.Config's MaxMessageSize is a pointer, which koanf's
// mapstructure decoder handles awkwardly from flat sources like env vars).
type Values struct {
	ListenAddr      string `koanf:"listen_addr"`
	Hostname        string `koanf:"hostname"`
	WorkerCount     int    `koanf:"worker_count"`
	MaxMessageSize  int    `koanf:"max_message_size"`
	AcceptTimeoutMS int    `koanf:"accept_timeout_ms"`
	AllowAuthLogin  bool   `koanf:"allow_auth_login"`
}

// ToAcceptorConfig converts the loaded values into an acceptor.Config. A
// MaxMessageSize of zero means "no limit", matching the policy hook's own
// nil-means-unbounded convention.
func (v Values) ToAcceptorConfig() acceptor.Config {
	cfg := acceptor.Config{
		ListenAddr:     v.ListenAddr,
		Hostname:       v.Hostname,
		WorkerCount:    v.WorkerCount,
		AllowAuthLogin: v.AllowAuthLogin,
	}
	if v.MaxMessageSize > 0 {
		size := v.MaxMessageSize
		cfg.MaxMessageSize = &size
	}
	if v.AcceptTimeoutMS > 0 {
		cfg.AcceptTimeout = time.Duration(v.AcceptTimeoutMS) * time.Millisecond
	}
	return cfg
}

func defaults() Values {
	return Values{
		ListenAddr:     ":2525",
		Hostname:       "localhost",
		WorkerCount:    4,
		AllowAuthLogin: true,
	}
}

// LoadFile loads configuration from a YAML file at path, falling back to
// the package defaults for any key the file doesn't set.
func LoadFile(path string) (Values, error) {
	k := koanf.New(".")
	v := defaults()
	if err := k.Load(structs.Provider(v, "koanf"), nil); err != nil {
		return Values{}, fmt.Errorf("smtpconfig: seeding defaults: %w", err)
	}
	if err := k.Load(kfile.Provider(path), kyaml.Parser()); err != nil {
		return Values{}, fmt.Errorf("smtpconfig: loading %s: %w", path, err)
	}
	var out Values
	if err := k.UnmarshalWithConf("", &out, unmarshalConf(&out)); err != nil {
		return Values{}, fmt.Errorf("smtpconfig: unmarshalling %s: %w", path, err)
	}
	return out, nil
}

// LoadEnv loads configuration from environment variables prefixed with
// prefix (e.g. "SMTPCORE_"), layered on top of the package defaults. The
// variable name after the prefix, lowercased, is the key, so
// SMTPCORE_LISTEN_ADDR sets listen_addr.
func LoadEnv(prefix string) (Values, error) {
	k := koanf.New(".")
	v := defaults()
	if err := k.Load(structs.Provider(v, "koanf"), nil); err != nil {
		return Values{}, fmt.Errorf("smtpconfig: seeding defaults: %w", err)
	}
	replacer := strings.NewReplacer("-", "_")
	if err := k.Load(kenv.Provider(prefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(replacer.Replace(s), prefix))
	}), nil); err != nil {
		return Values{}, fmt.Errorf("smtpconfig: loading env: %w", err)
	}
	var out Values
	if err := k.UnmarshalWithConf("", &out, unmarshalConf(&out)); err != nil {
		return Values{}, fmt.Errorf("smtpconfig: unmarshalling env: %w", err)
	}
	return out, nil
}
