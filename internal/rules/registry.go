package rules

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/qinvest/stocksim/pkg/models"
)

//go:embed configs
var defaultConfigs embed.FS

// ════════════════════════════════════════════════════════════════════
// Registry — loads rule layers and composes rulesets on demand
// ════════════════════════════════════════════════════════════════════

// Registry holds the parsed rule layers and a cache of composed rulesets
// keyed by trading environment. After loading it is read-mostly and safe
// to share across concurrent runs.
type Registry struct {
	mu       sync.RWMutex
	markets  map[models.Market]MarketConfig
	boards   map[string]BoardConfig // "CN/MAIN" → board layer
	channels map[models.Channel]ChannelConfig
	cache    map[string]*Ruleset
}

// NewRegistry loads the embedded default rule configuration.
func NewRegistry() (*Registry, error) {
	sub, err := fs.Sub(defaultConfigs, "configs")
	if err != nil {
		return nil, fmt.Errorf("rules: embedded configs: %w", err)
	}
	return NewRegistryFromFS(sub)
}

// NewRegistryFromFS loads rule configuration from an arbitrary filesystem
// laid out as "<market>/market.yaml", "<market>/<board>.yaml", and
// "channels/<channel>.yaml".
func NewRegistryFromFS(fsys fs.FS) (*Registry, error) {
	r := &Registry{
		markets:  make(map[models.Market]MarketConfig),
		boards:   make(map[string]BoardConfig),
		channels: make(map[models.Channel]ChannelConfig),
		cache:    make(map[string]*Ruleset),
	}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".yaml") {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		return r.loadFile(p, data)
	})
	if err != nil {
		return nil, fmt.Errorf("rules: load: %w", err)
	}

	if len(r.markets) == 0 {
		return nil, fmt.Errorf("rules: no market layers found")
	}
	return r, nil
}

// loadFile routes one YAML file into the correct layer map by its path.
func (r *Registry) loadFile(p string, data []byte) error {
	dir := path.Dir(p)
	base := strings.TrimSuffix(path.Base(p), ".yaml")

	switch {
	case dir == "channels":
		var cc ChannelConfig
		if err := parseYAML(data, &cc); err != nil {
			return fmt.Errorf("channel %s: %w", p, err)
		}
		if cc.Channel == "" {
			return fmt.Errorf("channel %s: missing channel name", p)
		}
		r.channels[models.Channel(cc.Channel)] = cc

	case base == "market":
		var mc MarketConfig
		if err := parseYAML(data, &mc); err != nil {
			return fmt.Errorf("market %s: %w", p, err)
		}
		if mc.Market == "" {
			return fmt.Errorf("market %s: missing market name", p)
		}
		r.markets[models.Market(mc.Market)] = mc

	default:
		var bc BoardConfig
		if err := parseYAML(data, &bc); err != nil {
			return fmt.Errorf("board %s: %w", p, err)
		}
		if bc.Board == "" {
			return fmt.Errorf("board %s: missing board name", p)
		}
		key := strings.ToUpper(dir) + "/" + bc.Board
		r.boards[key] = bc
	}
	return nil
}

// parseYAML decodes one layer file through viper so the layer format
// matches the application config conventions.
func parseYAML(data []byte, out any) error {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return err
	}
	return v.Unmarshal(out)
}

// ForEnvironment returns the composed, cached ruleset for env.
func (r *Registry) ForEnvironment(env models.TradingEnvironment) (*Ruleset, error) {
	key := env.Key()

	r.mu.RLock()
	rs, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return rs, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rs, ok := r.cache[key]; ok {
		return rs, nil
	}

	mc, ok := r.markets[env.Market]
	if !ok {
		return nil, models.NewRunError(models.ErrInvalidConfig, "no market layer for %s", env.Market)
	}
	bc, ok := r.boards[string(env.Market)+"/"+string(env.Board)]
	if !ok {
		return nil, models.NewRunError(models.ErrInvalidConfig, "no board layer for %s/%s", env.Market, env.Board)
	}
	cc, ok := r.channels[env.Channel]
	if !ok {
		return nil, models.NewRunError(models.ErrInvalidConfig, "no channel layer for %s", env.Channel)
	}
	if !channelServes(cc, env.Market) {
		return nil, models.NewRunError(models.ErrInvalidConfig,
			"channel %s does not serve market %s", env.Channel, env.Market)
	}

	rs = &Ruleset{env: env, market: mc, board: bc, channel: cc}
	r.cache[key] = rs
	return rs, nil
}

// Environments returns the keys of every composable environment,
// for diagnostics and the CLI rules command.
func (r *Registry) Environments() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []string
	for bkey := range r.boards {
		mkt := strings.SplitN(bkey, "/", 2)[0]
		for ch, cc := range r.channels {
			if channelServes(cc, models.Market(mkt)) {
				keys = append(keys, bkey+"/"+string(ch))
			}
		}
	}
	return keys
}

func channelServes(cc ChannelConfig, market models.Market) bool {
	for _, m := range cc.ApplicableMarkets {
		if models.Market(m) == market {
			return true
		}
	}
	return false
}
