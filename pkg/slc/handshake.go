package slc

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/arzzra/handsfree/pkg/at"
	"github.com/arzzra/handsfree/pkg/handsfree"
)

// callIndicators индикаторы, которые машина получает всегда, даже если AG их не объявил.
var callIndicators = []string{"call", "callsetup", "callheld"}

func (s *session) handshake() {
	chld, values, err := s.negotiate()
	if err != nil {
		select {
		case <-s.done:
		default:
			s.log.Error("SLC не установлен", slog.String("error", err.Error()))
			s.close()
		}
		return
	}

	s.mu.Lock()
	peer, names := s.peer, s.names
	s.mu.Unlock()

	s.log.Info("SLC установлен", slog.Int("peer_features", int(peer)), slog.Int("chld_features", int(chld)))
	s.link.post(handsfree.ConnectionStateEvent{
		State:        handsfree.ConnectionSLCConnected,
		Device:       s.dev,
		PeerFeatures: peer,
		ChldFeatures: chld,
	})
	for _, ev := range initialIndicators(names, values) {
		s.link.post(ev)
	}
}

// negotiate выполняет обмен установки SLC.
func (s *session) negotiate() (handsfree.ChldFeatures, []int, error) {
	cfg := s.link.cfg

	cmd, err := s.run(at.SupportedFeatures(int(cfg.Features)), true)
	if err != nil {
		return 0, nil, err
	}
	var peer handsfree.PeerFeatures
	if r, ok := cmd.info("+BRSF"); ok {
		if peer, err = at.BRSF(r); err != nil {
			return 0, nil, err
		}
	}

	cmd, err = s.run(at.IndicatorsTest, true)
	if err != nil {
		return 0, nil, err
	}
	r, ok := cmd.info("+CIND")
	if !ok {
		return 0, nil, errors.New("slc: AG не вернул список индикаторов")
	}
	names, err := at.CINDNames(r)
	if err != nil {
		return 0, nil, err
	}

	s.mu.Lock()
	s.peer, s.names = peer, names
	s.mu.Unlock()

	cmd, err = s.run(at.IndicatorsRead, true)
	if err != nil {
		return 0, nil, err
	}
	var values []int
	if r, ok := cmd.info("+CIND"); ok {
		if values, err = at.CINDValues(r); err != nil {
			return 0, nil, err
		}
	}

	if _, err := s.run(at.EventReporting, true); err != nil {
		return 0, nil, err
	}

	var chld handsfree.ChldFeatures
	threeWay := peer.Has(handsfree.PeerFeature3Way) && cfg.Features&HFFeature3Way != 0
	if threeWay {
		cmd, err := s.run(at.CallHoldTest, false)
		if err != nil {
			return 0, nil, err
		}
		if r, ok := cmd.info("+CHLD"); ok {
			if chld, err = at.CHLD(r); err != nil {
				s.log.Warn("некорректный +CHLD", slog.String("line", r.Raw))
				chld = 0
			}
		}
	}

	optional := []string{at.EnableCLIP}
	if threeWay {
		optional = append(optional, at.EnableCCWA)
	}
	if peer.Has(handsfree.PeerFeatureExtErrors) {
		optional = append(optional, at.EnableCMEE)
	}
	optional = append(optional, at.OperatorFormat)
	for _, line := range optional {
		if _, err := s.run(line, false); err != nil {
			return 0, nil, err
		}
	}
	return chld, values, nil
}

// run выполняет команду; для обязательной команды итог не OK прерывает установку.
func (s *session) run(line string, required bool) (*command, error) {
	cmd, err := s.exec(line)
	if err != nil {
		return nil, err
	}
	if cmd.final.Code != handsfree.ResultOK {
		if required {
			return nil, errors.Errorf("slc: %s: %s", line, cmd.final.Code)
		}
		s.log.Warn("команда отклонена", slog.String("line", line), slog.String("result", cmd.final.Code.String()))
	}
	return cmd, nil
}

// initialIndicators события начальных значений индикаторов.
func initialIndicators(names []string, values []int) []handsfree.Event {
	var events []handsfree.Event
	seen := make(map[string]bool)
	for i, name := range names {
		if i >= len(values) {
			break
		}
		ev, ok := indicatorEvent(name, values[i])
		if !ok {
			continue
		}
		seen[canonicalIndicator(name)] = true
		events = append(events, ev)
	}
	for _, name := range callIndicators {
		if !seen[name] {
			ev, _ := indicatorEvent(name, 0)
			events = append(events, ev)
		}
	}
	return events
}

func canonicalIndicator(name string) string {
	switch name {
	case "call_setup":
		return "callsetup"
	case "call_held":
		return "callheld"
	}
	return name
}
