package websocket

// Типы серверных событий
const (
	EventState        = "state"
	EventAnswerResult = "answer_result"
	EventPong         = "pong"
)

// Действия клиента
const (
	ActionAnswer          = "answer"
	ActionVote            = "vote"
	ActionSkip            = "skip"
	ActionTransferCaptain = "transfer_captain"
	ActionHostControl     = "host_control"
	ActionPing            = "ping"
)

// Event — конверт серверного сообщения: {"type": ..., "data": ...}
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ClientMessage — входящее сообщение клиента. Набор заполненных полей
// зависит от действия.
type ClientMessage struct {
	Action string `json:"action"`

	// answer: номер варианта в нумерации 1..4
	OptionIndex int `json:"option_index,omitempty"`

	// vote: произвольная строка выбора
	Choice string `json:"choice,omitempty"`

	// transfer_captain
	ToPlayerID uint `json:"to_player_id,omitempty"`

	// host_control
	ControlAction  string `json:"control_action,omitempty"`
	TargetPlayerID uint   `json:"target_player_id,omitempty"`
	Topic          string `json:"topic,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
}

// CommandHandler обрабатывает игровые команды, пришедшие по сокету.
// Реализуется игровым сервисом; ошибка означает отклоненную команду,
// после которой соединение закрывается с кодом 1008.
type CommandHandler interface {
	HandleAnswer(pin string, playerID uint, optionIndex int) error
	HandleVote(pin string, playerID uint, choice string) error
	HandleSkip(pin string, playerID uint) error
	HandleTransferCaptain(pin string, fromPlayerID, toPlayerID uint) error
	HandleHostControl(pin string, hostPlayerID uint, msg ClientMessage) error

	// HandleDisconnect вызывается после закрытия сокета по любой причине.
	HandleDisconnect(pin string, playerID uint)
}
