package proxy

import (
	"robohost/server/domain"
	"robohost/server/events"
	"robohost/server/graphics"
)

// Robot はプロキシ上で動くロボット本体です。
// Runはラウンドごとに呼ばれ、行動メソッドが返したエラーはそのまま返してください。
type Robot interface {
	// Statics はStartRoundで送る自己申告(名前・種別)を返します。
	Statics() domain.RobotStatics
	Run(api *Proxy) error
}

// 以下はロボットが任意で実装するイベントハンドラです。

type StatusHandler interface {
	OnStatus(e *domain.StatusEvent) error
}

type ScannedRobotHandler interface {
	OnScannedRobot(e *domain.ScannedRobotEvent) error
}

type HitWallHandler interface {
	OnHitWall(e *domain.HitWallEvent) error
}

type HitRobotHandler interface {
	OnHitRobot(e *domain.HitRobotEvent) error
}

type HitByBulletHandler interface {
	OnHitByBullet(e *domain.HitByBulletEvent) error
}

type BulletHitHandler interface {
	OnBulletHit(e *domain.BulletHitEvent) error
}

type BulletHitBulletHandler interface {
	OnBulletHitBullet(e *domain.BulletHitBulletEvent) error
}

type BulletMissedHandler interface {
	OnBulletMissed(e *domain.BulletMissedEvent) error
}

type RobotDeathHandler interface {
	OnRobotDeath(e *domain.RobotDeathEvent) error
}

type WinHandler interface {
	OnWin(e *domain.WinEvent) error
}

type DeathHandler interface {
	OnDeath(e *domain.DeathEvent) error
}

type SkippedTurnHandler interface {
	OnSkippedTurn(e *domain.SkippedTurnEvent) error
}

type BattleEndedHandler interface {
	OnBattleEnded(e *domain.BattleEndedEvent) error
}

type RoundEndedHandler interface {
	OnRoundEnded(e *domain.RoundEndedEvent) error
}

type CustomEventHandler interface {
	OnCustomEvent(e *domain.CustomEvent) error
}

type MessageHandler interface {
	OnMessage(e *domain.MessageEvent) error
}

// PaintHandler は描画が有効なtickに描画バッファを受け取る
type PaintHandler interface {
	OnPaint(g *graphics.Buffer) error
}

type KeyHandler interface {
	OnKey(e *domain.KeyEvent) error
}

type MouseHandler interface {
	OnMouse(e *domain.MouseEvent) error
}

// bind はfnを種別kindのハンドラとして型付きで登録する
func bind[E domain.Event](m *events.Manager, kind domain.EventKind, fn func(E) error) {
	m.Handle(kind, func(ev domain.Event) error {
		e, ok := ev.(E)
		if !ok {
			return nil
		}
		return fn(e)
	})
}

var keyKinds = []domain.EventKind{
	domain.KindKeyPressed, domain.KindKeyReleased, domain.KindKeyTyped,
}

var mouseKinds = []domain.EventKind{
	domain.KindMouseClicked, domain.KindMouseDragged, domain.KindMouseEntered,
	domain.KindMouseExited, domain.KindMouseMoved, domain.KindMousePressed,
	domain.KindMouseReleased, domain.KindMouseWheelMoved,
}

// bindHandlers はロボットが実装しているハンドラをmに登録する。
// Win/Deathはロボットの実装有無によらず制御シグナルを返す。
func (p *Proxy) bindHandlers(m *events.Manager) {
	r := p.robot

	bind(m, domain.KindWin, func(e *domain.WinEvent) error {
		if h, ok := r.(WinHandler); ok {
			if err := h.OnWin(e); err != nil && !IsControlSignal(err) {
				p.logger.WarnContext(p.ctx, "win handler failed", "err", err)
			}
		}
		return ErrWin
	})
	bind(m, domain.KindDeath, func(e *domain.DeathEvent) error {
		if h, ok := r.(DeathHandler); ok {
			if err := h.OnDeath(e); err != nil && !IsControlSignal(err) {
				p.logger.WarnContext(p.ctx, "death handler failed", "err", err)
			}
		}
		return ErrDeath
	})

	if h, ok := r.(StatusHandler); ok {
		bind(m, domain.KindStatus, h.OnStatus)
	}
	if h, ok := r.(ScannedRobotHandler); ok {
		bind(m, domain.KindScannedRobot, h.OnScannedRobot)
	}
	if h, ok := r.(HitWallHandler); ok {
		bind(m, domain.KindHitWall, h.OnHitWall)
	}
	if h, ok := r.(HitRobotHandler); ok {
		bind(m, domain.KindHitRobot, h.OnHitRobot)
	}
	if h, ok := r.(HitByBulletHandler); ok {
		bind(m, domain.KindHitByBullet, h.OnHitByBullet)
	}
	if h, ok := r.(BulletHitHandler); ok {
		bind(m, domain.KindBulletHit, h.OnBulletHit)
	}
	if h, ok := r.(BulletHitBulletHandler); ok {
		bind(m, domain.KindBulletHitBullet, h.OnBulletHitBullet)
	}
	if h, ok := r.(BulletMissedHandler); ok {
		bind(m, domain.KindBulletMissed, h.OnBulletMissed)
	}
	if h, ok := r.(RobotDeathHandler); ok {
		bind(m, domain.KindRobotDeath, h.OnRobotDeath)
	}
	if h, ok := r.(SkippedTurnHandler); ok {
		bind(m, domain.KindSkippedTurn, h.OnSkippedTurn)
	}
	if h, ok := r.(BattleEndedHandler); ok {
		bind(m, domain.KindBattleEnded, h.OnBattleEnded)
	}
	if h, ok := r.(RoundEndedHandler); ok {
		bind(m, domain.KindRoundEnded, h.OnRoundEnded)
	}
	if h, ok := r.(CustomEventHandler); ok {
		bind(m, domain.KindCustom, h.OnCustomEvent)
	}
	if h, ok := r.(MessageHandler); ok {
		bind(m, domain.KindMessage, h.OnMessage)
	}
	if h, ok := r.(PaintHandler); ok {
		bind(m, domain.KindPaint, func(*domain.PaintEvent) error {
			return h.OnPaint(p.graphics)
		})
	}
	if h, ok := r.(KeyHandler); ok {
		for _, k := range keyKinds {
			bind(m, k, h.OnKey)
		}
	}
	if h, ok := r.(MouseHandler); ok {
		for _, k := range mouseKinds {
			bind(m, k, h.OnMouse)
		}
	}
}
