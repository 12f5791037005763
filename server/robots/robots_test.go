package robots

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"robohost/server/domain"
	"robohost/server/proxy"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		spec     Spec
		wantName string
		advanced bool
		team     bool
	}{
		{name: "sitting duck", spec: Spec{Kind: "sittingduck", Name: "duck"}, wantName: "duck"},
		{name: "spinner defaults its name", spec: Spec{Kind: "spinner"}, wantName: "spinner"},
		{name: "rule bot", spec: Spec{Kind: "rulebot", Name: "r1"}, wantName: "r1", advanced: true},
		{name: "team rule bot", spec: Spec{Kind: "rulebot", Name: "r2", Team: "blue"}, wantName: "r2", advanced: true, team: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.spec, 1)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			st := r.Statics()
			if st.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", st.Name, tt.wantName)
			}
			if st.IsAdvancedRobot != tt.advanced {
				t.Errorf("IsAdvancedRobot = %v, want %v", st.IsAdvancedRobot, tt.advanced)
			}
			if st.IsTeamRobot != tt.team {
				t.Errorf("IsTeamRobot = %v, want %v", st.IsTeamRobot, tt.team)
			}
			if _, ok := r.(Reporter); !ok {
				t.Error("robot does not report results")
			}
		})
	}
}

func TestNewUnknownKind(t *testing.T) {
	if _, err := New(Spec{Kind: "tank"}, 1); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("got %v, want ErrUnknownKind", err)
	}
}

func TestKindsSorted(t *testing.T) {
	got := Kinds()
	if !slices.IsSorted(got) {
		t.Errorf("Kinds() = %v, want sorted", got)
	}
	if len(got) != 3 {
		t.Errorf("got %d kinds, want 3", len(got))
	}
}

func TestNewRuleBotPersonality(t *testing.T) {
	for seed := range uint64(20) {
		b := NewRuleBot("r", "", rand.New(rand.NewPCG(seed, seed+1)))
		if b.CloseRange < 100 || b.CloseRange > 200 {
			t.Errorf("seed %d: CloseRange = %f, want within [100, 200]", seed, b.CloseRange)
		}
		if b.MidRange < 250 || b.MidRange > 450 {
			t.Errorf("seed %d: MidRange = %f, want within [250, 450]", seed, b.MidRange)
		}
		if b.StrafeSign != 1 && b.StrafeSign != -1 {
			t.Errorf("seed %d: StrafeSign = %f, want ±1", seed, b.StrafeSign)
		}
	}
}

func TestRuleBotFlipsStrafeWhenHit(t *testing.T) {
	b := NewRuleBot("r", "", rand.New(rand.NewPCG(1, 2)))
	before := b.StrafeSign
	if err := b.OnHitByBullet(&domain.HitByBulletEvent{}); err != nil {
		t.Fatalf("OnHitByBullet failed: %v", err)
	}
	if b.StrafeSign != -before {
		t.Errorf("StrafeSign = %f, want %f", b.StrafeSign, -before)
	}
}

func TestFirePower(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{distance: 0, want: domain.MaxBulletPower},
		{distance: 100, want: domain.MaxBulletPower},
		{distance: 400, want: 1},
		{distance: 10000, want: domain.MinBulletPower},
	}
	for _, tt := range tests {
		if got := firePower(tt.distance); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("firePower(%f) = %f, want %f", tt.distance, got, tt.want)
		}
	}
}

func TestTally(t *testing.T) {
	var tally Tally
	_ = tally.OnRoundEnded(&domain.RoundEndedEvent{})
	_ = tally.OnWin(&domain.WinEvent{})
	want := &domain.BattleResults{TeamLeaderName: "x", Rank: 1}
	_ = tally.OnBattleEnded(&domain.BattleEndedEvent{Results: want})

	if tally.Rounds() != 1 || tally.Wins() != 1 {
		t.Errorf("rounds, wins = %d, %d, want 1, 1", tally.Rounds(), tally.Wins())
	}
	if tally.Results() != want {
		t.Errorf("Results() = %v, want %v", tally.Results(), want)
	}
}

var (
	_ proxy.ScannedRobotHandler = (*RuleBot)(nil)
	_ proxy.MessageHandler      = (*RuleBot)(nil)
	_ proxy.PaintHandler        = (*RuleBot)(nil)
	_ proxy.BattleEndedHandler  = (*SittingDuck)(nil)
	_ proxy.ScannedRobotHandler = (*Spinner)(nil)
)
