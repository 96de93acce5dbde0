package at

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/arzzra/handsfree/pkg/handsfree"
)

// Команды HF без параметров.
const (
	Answer          = "ATA"
	HangUp          = "AT+CHUP"
	Redial          = "AT+BLDN"
	ListCalls       = "AT+CLCC"
	OperatorFormat  = "AT+COPS=3,0"
	OperatorQuery   = "AT+COPS?"
	SubscriberQuery = "AT+CNUM"
	VoiceTagNumber  = "AT+BINP=1"
	IndicatorsTest  = "AT+CIND=?"
	IndicatorsRead  = "AT+CIND?"
	EventReporting  = "AT+CMER=3,0,0,1"
	CallHoldTest    = "AT+CHLD=?"
	EnableCLIP      = "AT+CLIP=1"
	EnableCCWA      = "AT+CCWA=1"
	EnableCMEE      = "AT+CMEE=1"
	CodecConnection = "AT+BCC"
)

// SupportedFeatures AT+BRSF: сообщает AG возможности HF.
func SupportedFeatures(features int) string {
	return fmt.Sprintf("AT+BRSF=%d", features)
}

// Dial набор номера.
func Dial(number string) string {
	return "ATD" + number + ";"
}

// DialMemory набор из ячейки памяти AG.
func DialMemory(location int) string {
	return fmt.Sprintf("ATD>%d;", location)
}

// VTS тоновый сигнал.
func VTS(code byte) string {
	return fmt.Sprintf("AT+VTS=%c", code)
}

// Volume AT+VGS или AT+VGM.
func Volume(volume handsfree.VolumeType, level int) string {
	if volume == handsfree.VolumeMic {
		return fmt.Sprintf("AT+VGM=%d", level)
	}
	return fmt.Sprintf("AT+VGS=%d", level)
}

// BVRA включение или выключение голосового управления.
func BVRA(start bool) string {
	if start {
		return "AT+BVRA=1"
	}
	return "AT+BVRA=0"
}

// BCS подтверждение кодека, выбранного AG.
func BCS(codec int) string {
	return fmt.Sprintf("AT+BCS=%d", codec)
}

// CallAction строка команды для примитива управления вызовом.
func CallAction(cmd handsfree.CallCommand, index int) (string, error) {
	switch cmd {
	case handsfree.CommandATA:
		return Answer, nil
	case handsfree.CommandCHUP:
		return HangUp, nil
	case handsfree.CommandCHLD0, handsfree.CommandCHLD1, handsfree.CommandCHLD2,
		handsfree.CommandCHLD3, handsfree.CommandCHLD4:
		return fmt.Sprintf("AT+CHLD=%d", int(cmd-handsfree.CommandCHLD0)), nil
	case handsfree.CommandCHLD1x, handsfree.CommandCHLD2x:
		if index <= 0 {
			return "", errors.Errorf("at: %s требует номер вызова", cmd)
		}
		base := 1
		if cmd == handsfree.CommandCHLD2x {
			base = 2
		}
		return fmt.Sprintf("AT+CHLD=%d%d", base, index), nil
	case handsfree.CommandBTRH0, handsfree.CommandBTRH1, handsfree.CommandBTRH2:
		return fmt.Sprintf("AT+BTRH=%d", int(cmd-handsfree.CommandBTRH0)), nil
	}
	return "", errors.Errorf("at: неизвестный примитив %s", cmd)
}
