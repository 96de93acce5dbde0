package at

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/arzzra/handsfree/pkg/handsfree"
)

// Kind класс строки, пришедшей от AG.
type Kind int

const (
	// KindFinal итоговый результат команды (OK, ERROR, +CME ERROR ...)
	KindFinal Kind = iota
	// KindUnsolicited незапрошенное сообщение (RING, +CIEV, +CLIP ...)
	KindUnsolicited
	// KindInfo промежуточный ответ на команду (+CLCC, +COPS, +CIND ...)
	KindInfo
)

func (k Kind) String() string {
	switch k {
	case KindFinal:
		return "final"
	case KindUnsolicited:
		return "unsolicited"
	case KindInfo:
		return "info"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ErrEmptyLine пустая строка.
var ErrEmptyLine = errors.New("at: пустая строка")

var finalCodes = map[string]handsfree.ResultCode{
	"OK":          handsfree.ResultOK,
	"ERROR":       handsfree.ResultError,
	"NO CARRIER":  handsfree.ResultNoCarrier,
	"BUSY":        handsfree.ResultBusy,
	"NO ANSWER":   handsfree.ResultNoAnswer,
	"DELAYED":     handsfree.ResultDelayed,
	"BLACKLISTED": handsfree.ResultBlacklisted,
}

var unsolicited = map[string]bool{
	"RING":  true,
	"+CIEV": true,
	"+CLIP": true,
	"+CCWA": true,
	"+BSIR": true,
	"+BVRA": true,
	"+VGS":  true,
	"+VGM":  true,
	"+BTRH": true,
	"+BCS":  true,
}

// Result разобранная строка AG.
type Result struct {
	Kind Kind
	// Name префикс без двоеточия: "+CIEV", "RING", "OK"
	Name string
	// Code и CmeError заполнены для KindFinal
	Code     handsfree.ResultCode
	CmeError int
	// Args поля после двоеточия, разделенные запятыми вне кавычек и скобок
	Args []string
	Raw  string
}

// Classify определяет класс строки без полного разбора.
func Classify(line string) Kind {
	line = strings.TrimSpace(line)
	if _, ok := finalCodes[line]; ok || strings.HasPrefix(line, "+CME ERROR") {
		return KindFinal
	}
	if unsolicited[prefixOf(line)] {
		return KindUnsolicited
	}
	return KindInfo
}

// separator позиция разделителя префикса; часть AG шлет "+VGS=7" вместо "+VGS: 7".
func separator(line string) int {
	if !strings.HasPrefix(line, "+") {
		return strings.IndexByte(line, ':')
	}
	return strings.IndexAny(line, ":=")
}

func prefixOf(line string) string {
	if i := separator(line); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return line
}

// Parse разбирает одну строку ответа AG.
func Parse(line string) (Result, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Result{}, ErrEmptyLine
	}
	r := Result{Raw: line, Kind: Classify(line)}

	if code, ok := finalCodes[line]; ok {
		r.Name = line
		r.Code = code
		return r, nil
	}
	if strings.HasPrefix(line, "+CME ERROR") {
		r.Name = "+CME ERROR"
		r.Code = handsfree.ResultCME
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "+CME ERROR"), ":"))
		n, err := strconv.Atoi(rest)
		if err != nil {
			return r, errors.Wrapf(err, "at: некорректный код +CME ERROR %q", rest)
		}
		r.CmeError = n
		return r, nil
	}

	i := separator(line)
	if i < 0 {
		r.Name = line
		return r, nil
	}
	r.Name = strings.TrimSpace(line[:i])
	r.Args = SplitArgs(line[i+1:])
	return r, nil
}

// SplitArgs делит список полей по запятым, не заходя внутрь кавычек и скобок.
func SplitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out    []string
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted && depth > 0 {
				depth--
			}
		case ',':
			if !quoted && depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// Int возвращает i-е поле как число.
func (r Result) Int(i int) (int, error) {
	if i >= len(r.Args) {
		return 0, errors.Errorf("at: %s: нет поля %d", r.Name, i)
	}
	n, err := strconv.Atoi(r.Args[i])
	if err != nil {
		return 0, errors.Wrapf(err, "at: %s: поле %d", r.Name, i)
	}
	return n, nil
}

// Str возвращает i-е поле без кавычек; отсутствующее поле дает пустую строку.
func (r Result) Str(i int) string {
	if i >= len(r.Args) {
		return ""
	}
	return Unquote(r.Args[i])
}

// Unquote снимает обрамляющие кавычки.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
