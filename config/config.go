package config

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"omapid/util/log"

	"github.com/ghodss/yaml"
)

type ServerProperties struct {
	Bind           string `cfg:"bind" json:"bind"`
	Port           int    `cfg:"port" json:"port"`
	Engine         string `cfg:"engine" json:"engine"`
	IOWorkers      int    `cfg:"ioWorkers" json:"ioWorkers"`
	MaxBufferNodes int    `cfg:"maxBufferNodes" json:"maxBufferNodes"`
	Multicore      bool   `cfg:"multicore" json:"multicore"`
	LogLevel       string `cfg:"logLevel" json:"logLevel"`
	LogFile        string `cfg:"logFile" json:"logFile"`
	LogMaxSize     int    `cfg:"logMaxSize" json:"logMaxSize"`
	PprofPort      int    `cfg:"pprofPort" json:"pprofPort"`
	// IdleTimeout is in seconds, 0 keeps idle connections open.
	IdleTimeout int `cfg:"idleTimeout" json:"idleTimeout"`
}

var Properties *ServerProperties

const (
	EngineEpoll = "epoll"
	EngineGnet  = "gnet"

	// DefaultPort is the registered OMAPI port.
	DefaultPort = 7911
)

func init() {
	Properties = defaults()
}

func defaults() *ServerProperties {
	return &ServerProperties{
		Bind:           "0.0.0.0",
		Port:           DefaultPort,
		Engine:         EngineEpoll,
		IOWorkers:      runtime.NumCPU(),
		MaxBufferNodes: 0,
		Multicore:      true,
		LogLevel:       "info",
		LogMaxSize:     100,
	}
}

// Address is the listener address built from Bind and Port.
func (p *ServerProperties) Address() string {
	return net.JoinHostPort(p.Bind, strconv.Itoa(p.Port))
}

func (p *ServerProperties) Validate() error {
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port %d", p.Port)
	}
	if p.Engine != EngineEpoll && p.Engine != EngineGnet {
		return fmt.Errorf("unknown engine %q, want %s or %s", p.Engine, EngineEpoll, EngineGnet)
	}
	if p.IOWorkers < 0 {
		return fmt.Errorf("invalid ioWorkers %d", p.IOWorkers)
	}
	if p.PprofPort < 0 || p.PprofPort > 65535 {
		return fmt.Errorf("invalid pprofPort %d", p.PprofPort)
	}
	// lumberjack reads 0 as its 100 MB default, a negative size is a typo
	if p.LogMaxSize < 0 {
		return fmt.Errorf("invalid logMaxSize %d", p.LogMaxSize)
	}
	if p.IdleTimeout < 0 {
		return fmt.Errorf("invalid idleTimeout %d", p.IdleTimeout)
	}
	if p.MaxBufferNodes < 0 {
		return fmt.Errorf("invalid maxBufferNodes %d", p.MaxBufferNodes)
	}
	if _, err := log.ParseLevel(p.LogLevel); err != nil {
		return err
	}
	return nil
}

func parse(reader io.Reader, configs *ServerProperties) (*ServerProperties, error) {
	cfgMap := make(map[string]string)
	scanner := bufio.NewScanner(reader)
	// scan config file
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// skip comments
		if len(line) > 0 && line[0] == '#' {
			continue
		}
		// get gap between key and value
		idx := strings.IndexAny(line, " \t")
		if idx > 0 && idx < len(line)-1 {
			key := line[0:idx]
			value := strings.TrimSpace(line[idx+1:])
			cfgMap[strings.ToLower(key)] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	t := reflect.TypeOf(configs)
	v := reflect.ValueOf(configs)
	n := t.Elem().NumField()
	for i := 0; i < n; i++ {
		// use reflection to get fields
		field := t.Elem().Field(i)
		fieldValue := v.Elem().Field(i)
		key, ok := field.Tag.Lookup("cfg")
		if !ok {
			key = field.Name
		}
		value, ok := cfgMap[strings.ToLower(key)]
		if !ok {
			continue
		}
		switch field.Type.Kind() {
		case reflect.String:
			fieldValue.SetString(value)
		case reflect.Int:
			num, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("config %s: %w", key, err)
			}
			fieldValue.SetInt(num)
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("config %s: %w", key, err)
			}
			fieldValue.SetBool(boolVal)
		}
	}
	return configs, nil
}

func parseYAML(reader io.Reader, configs *ServerProperties) (*ServerProperties, error) {
	bytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(bytes, configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// LoadConfigs reads a .yaml/.yml file or a "key value" file on top of the
// defaults and replaces Properties when the result is valid.
func LoadConfigs(configFilePath string) error {
	file, err := os.Open(configFilePath)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var configs *ServerProperties
	switch strings.ToLower(filepath.Ext(configFilePath)) {
	case ".yaml", ".yml":
		configs, err = parseYAML(file, defaults())
	default:
		configs, err = parse(file, defaults())
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", configFilePath, err)
	}
	if err := configs.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", configFilePath, err)
	}
	Properties = configs
	return nil
}
