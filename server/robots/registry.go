package robots

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"robohost/server/proxy"
)

var ErrUnknownKind = errors.New("robots: unknown robot kind")

// Spec は設定ファイルから読むロボット1体分の指定
type Spec struct {
	Kind string `yaml:"kind" toml:"kind" json:"kind"`
	Name string `yaml:"name" toml:"name" json:"name"`
	Team string `yaml:"team" toml:"team" json:"team"`
}

type factory func(spec Spec, rng *rand.Rand) proxy.Robot

var kinds = map[string]factory{
	"sittingduck": func(s Spec, _ *rand.Rand) proxy.Robot { return NewSittingDuck(s.Name) },
	"spinner":     func(s Spec, _ *rand.Rand) proxy.Robot { return NewSpinner(s.Name) },
	"rulebot":     func(s Spec, rng *rand.Rand) proxy.Robot { return NewRuleBot(s.Name, s.Team, rng) },
}

// Kinds は登録済みの種別名を辞書順で返す
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// New は指定からロボットを生成します。名前が空なら種別名を使います。
// 同じseedからは同じ個性のロボットができます。
func New(spec Spec, seed uint64) (proxy.Robot, error) {
	f, ok := kinds[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
	if spec.Name == "" {
		spec.Name = spec.Kind
	}
	return f(spec, rand.New(rand.NewPCG(seed, seed+1))), nil
}
