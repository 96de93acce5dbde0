package handsfree

import (
	"fmt"
	"strings"
	"time"
)

// Device идентифицирует удаленный Audio Gateway.
// Два устройства считаются одним и тем же, если совпадают адреса (без учета регистра).
type Device struct {
	// Address - Bluetooth адрес устройства (XX:XX:XX:XX:XX:XX)
	Address string
	// Name - дружественное имя, может быть пустым
	Name string
	// Path - объектный путь BlueZ, если устройство пришло из D-Bus
	Path string
}

// IsZero возвращает true для пустой привязки устройства.
func (d Device) IsZero() bool {
	return d.Address == ""
}

// Equal сравнивает устройства по адресу.
func (d Device) Equal(other Device) bool {
	return strings.EqualFold(d.Address, other.Address)
}

func (d Device) String() string {
	if d.Name != "" {
		return fmt.Sprintf("%s (%s)", d.Address, d.Name)
	}
	return d.Address
}

// CallState состояние логического вызова.
type CallState int

const (
	CallActive CallState = iota
	CallHeld
	CallDialing
	CallAlerting
	CallIncoming
	CallWaiting
	CallHeldByResponseAndHold
	CallTerminated
)

var callStateNames = map[CallState]string{
	CallActive:                "Active",
	CallHeld:                  "Held",
	CallDialing:               "Dialing",
	CallAlerting:              "Alerting",
	CallIncoming:              "Incoming",
	CallWaiting:               "Waiting",
	CallHeldByResponseAndHold: "HeldByResponseAndHold",
	CallTerminated:            "Terminated",
}

func (s CallState) String() string {
	if name, ok := callStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CallState(%d)", int(s))
}

// Call логический вызов, выведенный из индикаторов AG или из ответа +CLCC.
type Call struct {
	ID         int
	State      CallState
	Number     string
	MultiParty bool
	Outgoing   bool
	Device     Device
	CreatedAt  time.Time
}

func (c Call) String() string {
	return fmt.Sprintf("call[%d %s num=%q mpty=%t out=%t]", c.ID, c.State, c.Number, c.MultiParty, c.Outgoing)
}

// ConnectionState состояние профиля с точки зрения вызывающих.
type ConnectionState int

const (
	ConnectionDisconnected ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnecting
	// ConnectionSLCConnected приходит только от транспорта: SLC установлен
	ConnectionSLCConnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "Disconnected"
	case ConnectionConnecting:
		return "Connecting"
	case ConnectionConnected:
		return "Connected"
	case ConnectionDisconnecting:
		return "Disconnecting"
	case ConnectionSLCConnected:
		return "SLCConnected"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// AudioState состояние SCO канала.
type AudioState int

const (
	AudioDisconnected AudioState = iota
	AudioConnecting
	AudioConnected
	// AudioConnectedMSBC аудио поднято с широкополосным кодеком mSBC
	AudioConnectedMSBC
)

func (s AudioState) String() string {
	switch s {
	case AudioDisconnected:
		return "Disconnected"
	case AudioConnecting:
		return "Connecting"
	case AudioConnected:
		return "Connected"
	case AudioConnectedMSBC:
		return "ConnectedMSBC"
	}
	return fmt.Sprintf("AudioState(%d)", int(s))
}

// IndicatorUnknown значение индикатора, который еще не был получен.
const IndicatorUnknown = -1

// Значения индикатора call.
const (
	CallIndicatorNone       = 0
	CallIndicatorInProgress = 1
)

// Значения индикатора callsetup.
const (
	CallSetupNone     = 0
	CallSetupIncoming = 1
	CallSetupOutgoing = 2
	CallSetupAlerting = 3
)

// Значения индикатора callheld.
const (
	CallHeldNone          = 0
	CallHeldHoldAndActive = 1
	CallHeldHold          = 2
)

// Значения +BTRH.
const (
	RespAndHoldHeld   = 0
	RespAndHoldAccept = 1
	RespAndHoldReject = 2
)

// Indicators снимок трех основных индикаторов AG.
type Indicators struct {
	Call      int
	CallSetup int
	CallHeld  int
}

func unknownIndicators() Indicators {
	return Indicators{Call: IndicatorUnknown, CallSetup: IndicatorUnknown, CallHeld: IndicatorUnknown}
}

// Known возвращает true, когда все три индикатора получены хотя бы раз.
func (i Indicators) Known() bool {
	return i.Call != IndicatorUnknown && i.CallSetup != IndicatorUnknown && i.CallHeld != IndicatorUnknown
}

// PeerFeatures битовая маска возможностей AG из +BRSF.
type PeerFeatures uint32

const (
	PeerFeature3Way       PeerFeatures = 1 << 0
	PeerFeatureECNR       PeerFeatures = 1 << 1
	PeerFeatureVoiceRecog PeerFeatures = 1 << 2
	PeerFeatureInBandRing PeerFeatures = 1 << 3
	PeerFeatureVoiceTag   PeerFeatures = 1 << 4
	PeerFeatureReject     PeerFeatures = 1 << 5
	PeerFeatureECS        PeerFeatures = 1 << 6
	PeerFeatureECC        PeerFeatures = 1 << 7
	PeerFeatureExtErrors  PeerFeatures = 1 << 8
	PeerFeatureCodecNegot PeerFeatures = 1 << 9
)

// Has проверяет наличие всех бит f.
func (p PeerFeatures) Has(f PeerFeatures) bool {
	return p&f == f
}

// ChldFeatures возможности AG для AT+CHLD из ответа +CHLD=?.
type ChldFeatures uint32

const (
	ChldRelease         ChldFeatures = 1 << 0 // 0
	ChldReleaseAccept   ChldFeatures = 1 << 1 // 1
	ChldReleaseSpecific ChldFeatures = 1 << 2 // 1x
	ChldHoldAccept      ChldFeatures = 1 << 3 // 2
	ChldPrivateMode     ChldFeatures = 1 << 4 // 2x
	ChldMerge           ChldFeatures = 1 << 5 // 3
	ChldMergeDetach     ChldFeatures = 1 << 6 // 4
)

// Has проверяет наличие всех бит f.
func (c ChldFeatures) Has(f ChldFeatures) bool {
	return c&f == f
}

// CallCommand низкоуровневый примитив управления вызовом, который понимает транспорт.
type CallCommand int

const (
	CommandCHLD0 CallCommand = iota
	CommandCHLD1
	CommandCHLD2
	CommandCHLD3
	CommandCHLD4
	CommandCHLD1x
	CommandCHLD2x
	CommandATA
	CommandCHUP
	CommandBTRH0
	CommandBTRH1
	CommandBTRH2
)

var callCommandNames = map[CallCommand]string{
	CommandCHLD0:  "CHLD=0",
	CommandCHLD1:  "CHLD=1",
	CommandCHLD2:  "CHLD=2",
	CommandCHLD3:  "CHLD=3",
	CommandCHLD4:  "CHLD=4",
	CommandCHLD1x: "CHLD=1x",
	CommandCHLD2x: "CHLD=2x",
	CommandATA:    "ATA",
	CommandCHUP:   "CHUP",
	CommandBTRH0:  "BTRH=0",
	CommandBTRH1:  "BTRH=1",
	CommandBTRH2:  "BTRH=2",
}

func (c CallCommand) String() string {
	if name, ok := callCommandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CallCommand(%d)", int(c))
}

// AcceptFlag уточняет, что делать с активными вызовами при ответе.
type AcceptFlag int

const (
	AcceptNone AcceptFlag = iota
	AcceptHold
	AcceptTerminate
)

func (f AcceptFlag) String() string {
	switch f {
	case AcceptNone:
		return "NONE"
	case AcceptHold:
		return "HOLD"
	case AcceptTerminate:
		return "TERMINATE"
	}
	return fmt.Sprintf("AcceptFlag(%d)", int(f))
}

// ResultCode итог выполнения AT команды на стороне AG.
type ResultCode int

const (
	ResultOK ResultCode = iota
	ResultError
	ResultNoCarrier
	ResultBusy
	ResultNoAnswer
	ResultDelayed
	ResultBlacklisted
	ResultCME
)

func (r ResultCode) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultError:
		return "ERROR"
	case ResultNoCarrier:
		return "NO CARRIER"
	case ResultBusy:
		return "BUSY"
	case ResultNoAnswer:
		return "NO ANSWER"
	case ResultDelayed:
		return "DELAYED"
	case ResultBlacklisted:
		return "BLACKLISTED"
	case ResultCME:
		return "+CME ERROR"
	}
	return fmt.Sprintf("ResultCode(%d)", int(r))
}

// VolumeType тип регулятора громкости.
type VolumeType int

const (
	VolumeSpeaker VolumeType = iota
	VolumeMic
)

func (v VolumeType) String() string {
	if v == VolumeMic {
		return "mic"
	}
	return "speaker"
}

// Значения состояния распознавания голоса.
const (
	VoiceRecognitionStopped = 0
	VoiceRecognitionStarted = 1
)

// Значения состояния сети (+CIEV service).
const (
	NetworkUnavailable = 0
	NetworkAvailable   = 1
)
