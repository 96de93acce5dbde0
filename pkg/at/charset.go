package at

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"github.com/warthog618/sms/encoding/ucs2"
)

// Charset кодировка строковых полей, выбранная через AT+CSCS.
type Charset string

const (
	CharsetUTF8 Charset = "UTF-8"
	CharsetGSM  Charset = "GSM"
	// CharsetUCS2 строки приходят шестнадцатеричной записью UCS2
	CharsetUCS2 Charset = "UCS2"
)

// ParseCharset нормализует имя кодировки; пустое имя означает UTF-8.
func ParseCharset(name string) (Charset, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "UTF-8", "UTF8":
		return CharsetUTF8, nil
	case "GSM", "IRA":
		return CharsetGSM, nil
	case "UCS2", "UCS-2":
		return CharsetUCS2, nil
	}
	return "", errors.Errorf("at: неизвестная кодировка %q", name)
}

// Decode переводит строковое поле в UTF-8. Для UCS2 строка, не похожая на
// шестнадцатеричную запись, возвращается как есть: AG часто шлют номера открытым текстом.
func (c Charset) Decode(s string) (string, error) {
	if c != CharsetUCS2 || !looksLikeUCS2(s) {
		return s, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", errors.Wrap(err, "at: ucs2 hex")
	}
	runes, err := ucs2.Decode(raw)
	if err != nil {
		return "", errors.Wrap(err, "at: ucs2")
	}
	return string(runes), nil
}

func looksLikeUCS2(s string) bool {
	if len(s) < 4 || len(s)%4 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
