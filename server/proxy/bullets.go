package proxy

import (
	"sync"

	"robohost/server/domain"
)

// bulletTable は生存中の自弾をIDで引く表。
// 挿入と削除はtickのgoroutineだけが行い、参照は補助goroutineからも来る。
type bulletTable struct {
	m sync.Map
}

func (t *bulletTable) load(id int32) (*domain.Bullet, bool) {
	v, ok := t.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*domain.Bullet), true
}

func (t *bulletTable) store(b *domain.Bullet) { t.m.Store(b.ID(), b) }

func (t *bulletTable) remove(id int32) { t.m.Delete(id) }

func (t *bulletTable) clear() { t.m.Clear() }

func (t *bulletTable) len() int {
	n := 0
	t.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// reconcile はイベント中の自弾スナップショットを生存中のハンドルに反映し、
// イベントが同じハンドルを指すように差し替える
func (t *bulletTable) reconcile(ev domain.Event) {
	snap := domain.OwnBullet(ev)
	if snap == nil {
		return
	}
	live, ok := t.load(snap.ID())
	if !ok {
		return
	}
	if live != snap {
		live.Update(snap.X(), snap.Y(), snap.Victim(), snap.IsActive())
		domain.ReplaceOwnBullet(ev, live)
	}
}

// apply はBulletStatusを追跡中の弾に反映し、非アクティブになった弾を外す
func (t *bulletTable) apply(updates []domain.BulletStatus) {
	for _, s := range updates {
		b, ok := t.load(s.BulletID)
		if !ok {
			continue
		}
		b.Update(s.X, s.Y, s.VictimName, s.IsActive)
		if !s.IsActive {
			t.remove(s.BulletID)
		}
	}
}
