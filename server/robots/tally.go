package robots

import (
	"sync"

	"robohost/server/domain"
)

// Tally はラウンド終了とバトル終了を数えるハンドラ。サンプルロボットに埋め込んで使う。
type Tally struct {
	mu      sync.Mutex
	rounds  int
	wins    int
	results *domain.BattleResults
}

func (t *Tally) OnRoundEnded(*domain.RoundEndedEvent) error {
	t.mu.Lock()
	t.rounds++
	t.mu.Unlock()
	return nil
}

func (t *Tally) OnWin(*domain.WinEvent) error {
	t.mu.Lock()
	t.wins++
	t.mu.Unlock()
	return nil
}

func (t *Tally) OnBattleEnded(e *domain.BattleEndedEvent) error {
	t.mu.Lock()
	t.results = e.Results
	t.mu.Unlock()
	return nil
}

// Rounds は終了を見届けたラウンド数
func (t *Tally) Rounds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rounds
}

func (t *Tally) Wins() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wins
}

// Results はBattleEndedで受け取った成績。バトルが終わるまではnil。
func (t *Tally) Results() *domain.BattleResults {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.results
}

// Reporter は成績を報告できるロボット
type Reporter interface {
	Rounds() int
	Wins() int
	Results() *domain.BattleResults
}
