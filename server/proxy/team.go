package proxy

import (
	"fmt"
	"slices"

	"robohost/server/domain"
)

// SendMessage はチームメイトnameへのメッセージを次の交換で送る
func (p *Proxy) SendMessage(name string, msg []byte) error {
	p.setCall()
	if !p.statics.IsTeamRobot {
		return ErrNotTeamRobot
	}
	if len(msg) > MaxTeamMessageSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrMessageTooLarge, len(msg), MaxTeamMessageSize)
	}
	p.commands.TeamMessages = append(p.commands.TeamMessages, domain.TeamMessage{
		Sender:    p.statics.Name,
		Recipient: name,
		Message:   slices.Clone(msg),
	})
	return nil
}

// BroadcastMessage はチーム全員へのメッセージを次の交換で送る
func (p *Proxy) BroadcastMessage(msg []byte) error {
	return p.SendMessage("", msg)
}

func (p *Proxy) Teammates() []string {
	p.getCall()
	return slices.Clone(p.statics.Teammates)
}

func (p *Proxy) IsTeammate(name string) bool {
	p.getCall()
	return p.statics.IsTeammate(name)
}
