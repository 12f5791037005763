package robots

import (
	"math"

	"robohost/server/domain"
	"robohost/server/proxy"
	"robohost/utils"
)

// SittingDuck は何もしないロボット
type SittingDuck struct {
	Tally
	name string
}

func NewSittingDuck(name string) *SittingDuck {
	return &SittingDuck{name: name}
}

func (d *SittingDuck) Statics() domain.RobotStatics {
	return domain.RobotStatics{Name: d.name, ShortName: "duck"}
}

func (d *SittingDuck) Run(api *proxy.Proxy) error {
	for {
		if err := api.DoNothing(); err != nil {
			return err
		}
	}
}

// Spinner は砲塔を回し続け、見つけた相手を撃つ。
// 通常ロボットなのでレーダーは砲塔に、砲塔は車体に追従する。
type Spinner struct {
	Tally
	name string
	api  *proxy.Proxy
}

func NewSpinner(name string) *Spinner {
	return &Spinner{name: name}
}

func (s *Spinner) Statics() domain.RobotStatics {
	return domain.RobotStatics{Name: s.name, ShortName: "spinner"}
}

func (s *Spinner) Run(api *proxy.Proxy) error {
	s.api = api
	for {
		if err := api.TurnGun(math.Pi / 4); err != nil {
			return err
		}
	}
}

func (s *Spinner) OnScannedRobot(e *domain.ScannedRobotEvent) error {
	if s.api == nil {
		return nil
	}
	_, err := s.api.Fire(firePower(e.Distance))
	return err
}

// firePower は距離が近いほど強く撃つ
func firePower(distance float64) float64 {
	if distance <= 0 {
		return domain.MaxBulletPower
	}
	return utils.Clamp(400/distance, domain.MinBulletPower, domain.MaxBulletPower)
}
