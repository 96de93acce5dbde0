package at

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/arzzra/handsfree/pkg/handsfree"
)

// Типизированный разбор ответов AG. Каждая функция ожидает Result с нужным Name.

func expect(r Result, name string) error {
	if r.Name != name {
		return errors.Errorf("at: ожидался %s, получен %s", name, r.Name)
	}
	return nil
}

// BRSF возможности AG.
func BRSF(r Result) (handsfree.PeerFeatures, error) {
	if err := expect(r, "+BRSF"); err != nil {
		return 0, err
	}
	n, err := r.Int(0)
	if err != nil {
		return 0, err
	}
	return handsfree.PeerFeatures(n), nil
}

// CINDNames имена индикаторов из ответа AT+CIND=? в порядке их индексов (индекс 1 первым).
//
//	+CIND: ("service",(0,1)),("call",(0,1)),("callsetup",(0-3))
func CINDNames(r Result) ([]string, error) {
	if err := expect(r, "+CIND"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(r.Args))
	for _, arg := range r.Args {
		arg = strings.TrimSpace(arg)
		arg = strings.TrimPrefix(arg, "(")
		q1 := strings.IndexByte(arg, '"')
		if q1 < 0 {
			return nil, errors.Errorf("at: +CIND: нет имени индикатора в %q", arg)
		}
		q2 := strings.IndexByte(arg[q1+1:], '"')
		if q2 < 0 {
			return nil, errors.Errorf("at: +CIND: незакрытая кавычка в %q", arg)
		}
		names = append(names, strings.ToLower(arg[q1+1:q1+1+q2]))
	}
	return names, nil
}

// CINDValues текущие значения индикаторов из ответа AT+CIND?.
func CINDValues(r Result) ([]int, error) {
	if err := expect(r, "+CIND"); err != nil {
		return nil, err
	}
	values := make([]int, len(r.Args))
	for i := range r.Args {
		n, err := r.Int(i)
		if err != nil {
			return nil, err
		}
		values[i] = n
	}
	return values, nil
}

// CIEV индекс (с единицы) и новое значение индикатора.
func CIEV(r Result) (index, value int, err error) {
	if err = expect(r, "+CIEV"); err != nil {
		return 0, 0, err
	}
	if index, err = r.Int(0); err != nil {
		return 0, 0, err
	}
	if value, err = r.Int(1); err != nil {
		return 0, 0, err
	}
	return index, value, nil
}

var chldTokens = map[string]handsfree.ChldFeatures{
	"0":  handsfree.ChldRelease,
	"1":  handsfree.ChldReleaseAccept,
	"1x": handsfree.ChldReleaseSpecific,
	"2":  handsfree.ChldHoldAccept,
	"2x": handsfree.ChldPrivateMode,
	"3":  handsfree.ChldMerge,
	"4":  handsfree.ChldMergeDetach,
}

// CHLD возможности AT+CHLD из ответа AT+CHLD=?. Неизвестные значения пропускаются.
//
//	+CHLD: (0,1,1x,2,2x,3,4)
func CHLD(r Result) (handsfree.ChldFeatures, error) {
	if err := expect(r, "+CHLD"); err != nil {
		return 0, err
	}
	var features handsfree.ChldFeatures
	for _, arg := range r.Args {
		for _, tok := range strings.Split(strings.Trim(arg, "()"), ",") {
			features |= chldTokens[strings.ToLower(strings.TrimSpace(tok))]
		}
	}
	return features, nil
}

// CLIP номер вызывающего абонента.
func CLIP(r Result) (string, error) {
	if err := expect(r, "+CLIP"); err != nil {
		return "", err
	}
	return r.Str(0), nil
}

// CCWA номер ожидающего вызова.
func CCWA(r Result) (string, error) {
	if err := expect(r, "+CCWA"); err != nil {
		return "", err
	}
	return r.Str(0), nil
}

var clccStates = map[int]handsfree.CallState{
	0: handsfree.CallActive,
	1: handsfree.CallHeld,
	2: handsfree.CallDialing,
	3: handsfree.CallAlerting,
	4: handsfree.CallIncoming,
	5: handsfree.CallWaiting,
	6: handsfree.CallHeldByResponseAndHold,
}

// CLCC одна строка списка вызовов.
//
//	+CLCC: <idx>,<dir>,<stat>,<mode>,<mpty>[,<number>,<type>]
func CLCC(r Result) (handsfree.CurrentCallEvent, error) {
	if err := expect(r, "+CLCC"); err != nil {
		return handsfree.CurrentCallEvent{}, err
	}
	var fields [5]int
	for i := range fields {
		n, err := r.Int(i)
		if err != nil {
			return handsfree.CurrentCallEvent{}, err
		}
		fields[i] = n
	}
	state, ok := clccStates[fields[2]]
	if !ok {
		return handsfree.CurrentCallEvent{}, errors.Errorf("at: +CLCC: неизвестное состояние %d", fields[2])
	}
	return handsfree.CurrentCallEvent{
		Index:      fields[0],
		Outgoing:   fields[1] == 0,
		State:      state,
		MultiParty: fields[4] == 1,
		Number:     r.Str(5),
	}, nil
}

// COPS имя оператора из ответа AT+COPS?.
//
//	+COPS: <mode>[,<format>,<operator>]
func COPS(r Result) (string, error) {
	if err := expect(r, "+COPS"); err != nil {
		return "", err
	}
	return r.Str(2), nil
}

// CNUM номер абонента и тип сервиса.
//
//	+CNUM: [<alpha>],<number>,<type>[,<speed>,<service>]
func CNUM(r Result) (number string, service int, err error) {
	if err = expect(r, "+CNUM"); err != nil {
		return "", 0, err
	}
	number = r.Str(1)
	if len(r.Args) > 4 && r.Args[4] != "" {
		if service, err = r.Int(4); err != nil {
			return "", 0, err
		}
	}
	return number, service, nil
}

// BINP номер, привязанный к голосовой метке.
func BINP(r Result) (string, error) {
	if err := expect(r, "+BINP"); err != nil {
		return "", err
	}
	return r.Str(0), nil
}

// Value единственное числовое поле: +VGS, +VGM, +BVRA, +BSIR, +BTRH, +BCS.
func Value(r Result) (int, error) {
	switch r.Name {
	case "+VGS", "+VGM", "+BVRA", "+BSIR", "+BTRH", "+BCS":
		return r.Int(0)
	}
	return 0, errors.Errorf("at: %s не содержит числового значения", r.Name)
}
