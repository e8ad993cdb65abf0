package config

import (
	"bytes"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/framework"
	"github.com/seantiz/agentflow/internal/model"
)

// FrameworkSettings is the YAML form of one adapter's configuration:
//
//	frameworks:
//	  crewai:
//	    default_timeout: 90s
//	    time_scale: 0.5
type FrameworkSettings struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	TimeScale      float64       `yaml:"time_scale"`
}

type frameworksFile struct {
	Frameworks map[model.FrameworkType]FrameworkSettings `yaml:"frameworks"`
}

// LoadFrameworks reads per-framework adapter configuration from path. An
// empty path yields an empty map; frameworks the file does not mention use
// their adapter defaults.
func LoadFrameworks(path string) (map[model.FrameworkType]framework.Config, error) {
	if path == "" {
		return map[model.FrameworkType]framework.Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read frameworks file")
	}
	cfgs, err := parseFrameworks(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfgs, nil
}

func parseFrameworks(data []byte) (map[model.FrameworkType]framework.Config, error) {
	var file frameworksFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	out := make(map[model.FrameworkType]framework.Config, len(file.Frameworks))
	for ft, fs := range file.Frameworks {
		if !slices.Contains(model.KnownFrameworks, ft) {
			return nil, errors.Newf("unknown framework %q", ft)
		}
		if fs.DefaultTimeout < 0 {
			return nil, errors.Newf("%s: default_timeout must not be negative", ft)
		}
		if fs.TimeScale < 0 {
			return nil, errors.Newf("%s: time_scale must not be negative", ft)
		}
		out[ft] = framework.Config{
			DefaultTimeout: fs.DefaultTimeout,
			TimeScale:      fs.TimeScale,
		}
	}
	return out, nil
}

// FillTimeScale gives every framework in types the time scale scale unless
// its entry in cfgs already sets one. cfgs is modified in place.
func FillTimeScale(cfgs map[model.FrameworkType]framework.Config, types []model.FrameworkType, scale float64) {
	for _, ft := range types {
		c := cfgs[ft]
		if c.TimeScale == 0 {
			c.TimeScale = scale
			cfgs[ft] = c
		}
	}
}
