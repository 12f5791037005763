package engine

import (
	"math"
	"testing"

	"robohost/server/domain"
)

func TestResolveDeaths(t *testing.T) {
	a := newTestArena(t, Config{})
	killer := addRobot(a, "killer", 100, 100, 0)
	victim := addRobot(a, "victim", 300, 300, 0)
	bystander := addRobot(a, "bystander", 500, 500, 0)

	killer.dealt[victim] = 20
	victim.killer = killer
	victim.damage(120)

	a.resolveDeaths(a.participants())
	if victim.alive {
		t.Fatal("victim should be dead")
	}
	if victim.status.Energy != 0 {
		t.Errorf("victim energy = %f, want 0", victim.status.Energy)
	}
	if len(eventsOf[*domain.DeathEvent](victim)) != 1 {
		t.Error("victim did not receive a Death event")
	}
	for _, r := range []*robot{killer, bystander} {
		deaths := eventsOf[*domain.RobotDeathEvent](r)
		if len(deaths) != 1 || deaths[0].Name != "victim" {
			t.Errorf("%s: RobotDeath events = %+v", r.name(), deaths)
		}
		if r.score.survival != survivalScore {
			t.Errorf("%s: survival = %f, want %f", r.name(), r.score.survival, survivalScore)
		}
	}
	if math.Abs(killer.score.bulletDamageBonus-20*bulletKillBonusRatio) > eps {
		t.Errorf("bulletDamageBonus = %f, want %f", killer.score.bulletDamageBonus, 20*bulletKillBonusRatio)
	}
	if len(a.deaths) != 1 || a.deaths[0] != victim {
		t.Errorf("deaths = %v, want [victim]", a.deaths)
	}
}

func TestResolveDeathsIgnoresUndamagedZeroEnergy(t *testing.T) {
	a := newTestArena(t, Config{})
	r := addRobot(a, "r", 100, 100, 0)
	r.status.Energy = 0

	a.resolveDeaths(a.participants())
	if !r.alive {
		t.Error("a robot that spent its energy firing should stay alive")
	}
}

func TestPlace(t *testing.T) {
	a := newTestArena(t, Config{})
	first := addRobot(a, "first", 0, 0, 0)
	second := addRobot(a, "second", 0, 0, 0)
	third := addRobot(a, "third", 0, 0, 0)
	fourth := addRobot(a, "fourth", 0, 0, 0)
	first.status.Energy = 10

	// fourthが先に死に、thirdが後に死んだ
	place([]*robot{first}, []*robot{fourth, third})
	place([]*robot{second, first}, nil)

	if first.score.firsts != 1 || first.score.seconds != 1 {
		t.Errorf("first: firsts, seconds = %d, %d, want 1, 1", first.score.firsts, first.score.seconds)
	}
	if second.score.firsts != 1 {
		t.Errorf("second: firsts = %d, want 1", second.score.firsts)
	}
	if third.score.seconds != 1 {
		t.Errorf("third: seconds = %d, want 1", third.score.seconds)
	}
	if fourth.score.thirds != 1 {
		t.Errorf("fourth: thirds = %d, want 1", fourth.score.thirds)
	}
}

func TestStandings(t *testing.T) {
	a := newTestArena(t, Config{})
	low := addRobot(a, "low", 0, 0, 0)
	high := addRobot(a, "high", 0, 0, 0)
	low.score = score{survival: 50, bulletDamage: 10}
	high.score = score{survival: 100, lastSurvivorBonus: 10, bulletDamage: 30, firsts: 2}

	got := standings(a.robots)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].TeamLeaderName != "high" || got[0].Rank != 1 || got[0].Score != 140 || got[0].Firsts != 2 {
		t.Errorf("first place = %+v", got[0])
	}
	if got[1].TeamLeaderName != "low" || got[1].Rank != 2 || got[1].Score != 60 {
		t.Errorf("second place = %+v", got[1])
	}
	if res := resultFor(got, "low"); res == nil || res.Rank != 2 {
		t.Errorf("resultFor(low) = %+v", res)
	}
	if res := resultFor(got, "nobody"); res != nil {
		t.Errorf("resultFor(nobody) = %+v, want nil", res)
	}
}

func TestRouteTeamMessages(t *testing.T) {
	a := newTestArena(t, Config{})
	sender := addRobot(a, "a", 0, 0, 0)
	mate := addRobot(a, "b", 0, 0, 0)
	enemy := addRobot(a, "c", 0, 0, 0)
	sender.statics.TeamName = "blue"
	mate.statics.TeamName = "blue"
	enemy.statics.TeamName = "red"

	sender.pending = &request{kind: kindTick}
	sender.commands.TeamMessages = []domain.TeamMessage{
		{Message: []byte("all")},
		{Recipient: "c", Message: []byte("direct")},
	}

	a.route(a.participants())
	if len(mate.messages) != 1 || string(mate.messages[0].Message) != "all" || mate.messages[0].Sender != "a" {
		t.Errorf("teammate messages = %+v", mate.messages)
	}
	if len(enemy.messages) != 1 || string(enemy.messages[0].Message) != "direct" {
		t.Errorf("direct messages = %+v", enemy.messages)
	}
	if len(sender.messages) != 0 {
		t.Errorf("sender received %d messages, want 0", len(sender.messages))
	}
}

func TestUniqueName(t *testing.T) {
	a := newTestArena(t, Config{})
	addRobot(a, "spinner", 0, 0, 0)
	addRobot(a, "spinner (2)", 0, 0, 0)

	tests := []struct {
		in   string
		want string
	}{
		{in: "duck", want: "duck"},
		{in: "spinner", want: "spinner (3)"},
		{in: "", want: "robot"},
	}
	for _, tt := range tests {
		if got := a.uniqueName(tt.in); got != tt.want {
			t.Errorf("uniqueName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLeaveEndsRoundForLastSurvivor(t *testing.T) {
	tests := []struct {
		name     string
		robots   int
		wantOver bool
	}{
		{name: "one opponent left", robots: 2, wantOver: true},
		{name: "two opponents remain", robots: 3, wantOver: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestArena(t, Config{Rounds: 2, MaxTurns: 50})
			a.playing = true
			a.time = 3
			var rs []*robot
			for i := range tt.robots {
				rs = append(rs, addRobot(a, string(rune('a'+i)), float64(100+100*i), 100, 0))
			}
			a.leave(rs[0])

			if got := a.playing; got == tt.wantOver {
				t.Fatalf("playing = %v, want %v", got, !tt.wantOver)
			}
			if !tt.wantOver {
				return
			}
			stay := rs[1]
			if !stay.halted {
				t.Error("survivor should be halted")
			}
			if len(eventsOf[*domain.WinEvent](stay)) != 1 {
				t.Error("survivor did not receive a Win event")
			}
			if len(eventsOf[*domain.RoundEndedEvent](stay)) != 1 {
				t.Error("survivor did not receive a RoundEnded event")
			}
			if stay.score.lastSurvivorBonus != lastSurvivorBonus {
				t.Errorf("lastSurvivorBonus = %f, want %f", stay.score.lastSurvivorBonus, lastSurvivorBonus)
			}
			if a.round != 1 {
				t.Errorf("round = %d, want 1", a.round)
			}
		})
	}
}
