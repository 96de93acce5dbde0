package handsfree

import "fmt"

// ActionKind тип команды, отправленной AG.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionQueryCurrentCalls
	ActionQueryOperatorName
	ActionSubscriberInfo
	ActionSetMicVolume
	ActionSetSpeakerVolume
	ActionDialNumber
	ActionRedial
	ActionDialMemory
	ActionAcceptCall
	ActionRejectCall
	ActionHoldCall
	ActionTerminateCall
	ActionTerminateSpecificCall
	ActionEnterPrivateMode
	ActionExplicitCallTransfer
	ActionSendDTMF
	ActionLastVoiceTagNumber
	ActionVoiceRecognitionStart
	ActionVoiceRecognitionStop
)

var actionKindNames = map[ActionKind]string{
	ActionNone:                  "NO_ACTION",
	ActionQueryCurrentCalls:     "QUERY_CURRENT_CALLS",
	ActionQueryOperatorName:     "QUERY_OPERATOR_NAME",
	ActionSubscriberInfo:        "SUBSCRIBER_INFO",
	ActionSetMicVolume:          "SET_MIC_VOLUME",
	ActionSetSpeakerVolume:      "SET_SPEAKER_VOLUME",
	ActionDialNumber:            "DIAL_NUMBER",
	ActionRedial:                "REDIAL",
	ActionDialMemory:            "DIAL_MEMORY",
	ActionAcceptCall:            "ACCEPT_CALL",
	ActionRejectCall:            "REJECT_CALL",
	ActionHoldCall:              "HOLD_CALL",
	ActionTerminateCall:         "TERMINATE_CALL",
	ActionTerminateSpecificCall: "TERMINATE_SPECIFIC_CALL",
	ActionEnterPrivateMode:      "ENTER_PRIVATE_MODE",
	ActionExplicitCallTransfer:  "EXPLICIT_CALL_TRANSFER",
	ActionSendDTMF:              "SEND_DTMF",
	ActionLastVoiceTagNumber:    "LAST_VOICE_TAG_NUMBER",
	ActionVoiceRecognitionStart: "VOICE_RECOGNITION_START",
	ActionVoiceRecognitionStop:  "VOICE_RECOGNITION_STOP",
}

func (k ActionKind) String() string {
	if name, ok := actionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// affectsIndicators возвращает true для действий, эффект которых приходит изменением индикаторов.
func (k ActionKind) affectsIndicators() bool {
	switch k {
	case ActionAcceptCall, ActionRejectCall, ActionHoldCall, ActionTerminateCall,
		ActionEnterPrivateMode, ActionDialNumber, ActionDialMemory, ActionRedial:
		return true
	}
	return false
}

// ActionPayload вариант данных действия. Конкретный тип определяется видом действия.
type ActionPayload interface {
	isActionPayload()
}

// NoPayload действие без данных.
type NoPayload struct{}

// CallActionPayload примитив управления вызовом, выбранный корректором.
type CallActionPayload struct {
	Command CallCommand
	// Retry отмечает повторную попытку ответа с альтернативной командой
	Retry bool
}

// NumberPayload номер для набора.
type NumberPayload struct {
	Number string
}

// MemoryPayload ячейка памяти для набора.
type MemoryPayload struct {
	Location int
}

// CallRefPayload ссылка на конкретный вызов в таблице.
type CallRefPayload struct {
	CallID  int
	Command CallCommand
}

func (NoPayload) isActionPayload()         {}
func (CallActionPayload) isActionPayload() {}
func (NumberPayload) isActionPayload()     {}
func (MemoryPayload) isActionPayload()     {}
func (CallRefPayload) isActionPayload()    {}

// Action пара (вид, данные).
type Action struct {
	Kind    ActionKind
	Payload ActionPayload
}

var noAction = Action{Kind: ActionNone, Payload: NoPayload{}}

func (a Action) String() string {
	switch p := a.Payload.(type) {
	case CallActionPayload:
		if p.Retry {
			return fmt.Sprintf("%s/%s(retry)", a.Kind, p.Command)
		}
		return fmt.Sprintf("%s/%s", a.Kind, p.Command)
	case NumberPayload:
		return fmt.Sprintf("%s/%s", a.Kind, p.Number)
	case MemoryPayload:
		return fmt.Sprintf("%s/%d", a.Kind, p.Location)
	case CallRefPayload:
		return fmt.Sprintf("%s/%s#%d", a.Kind, p.Command, p.CallID)
	}
	return a.Kind.String()
}

// command возвращает примитив CHLD/ATA/BTRH, если он есть в данных действия.
func (a Action) command() (CallCommand, bool) {
	switch p := a.Payload.(type) {
	case CallActionPayload:
		return p.Command, true
	case CallRefPayload:
		return p.Command, true
	}
	return 0, false
}

// is проверяет вид действия и примитив.
func (a Action) is(kind ActionKind, cmd CallCommand) bool {
	if a.Kind != kind {
		return false
	}
	c, ok := a.command()
	return ok && c == cmd
}

// actionQueue FIFO отправленных, но еще не подтвержденных команд.
// Порядок очереди совпадает с порядком отправки; результат команды всегда относится к голове.
type actionQueue struct {
	items []Action
}

func (q *actionQueue) push(a Action) {
	q.items = append(q.items, a)
}

func (q *actionQueue) pop() (Action, bool) {
	if len(q.items) == 0 {
		return Action{}, false
	}
	head := q.items[0]
	q.items[0] = Action{}
	q.items = q.items[1:]
	return head, true
}

func (q *actionQueue) len() int {
	return len(q.items)
}

func (q *actionQueue) clear() {
	q.items = nil
}

func (q *actionQueue) snapshot() []Action {
	out := make([]Action, len(q.items))
	copy(out, q.items)
	return out
}
