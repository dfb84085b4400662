package eventbus

type GenerationEventType string

const (
	GenerationEventCompleted GenerationEventType = "GenerationCompleted"
	GenerationEventFailed    GenerationEventType = "GenerationFailed"
)

type GenerationEvent struct {
	Type      GenerationEventType
	RunID     string
	ProjectID string
	FormatID  string
	Mode      string
	Status    string
	Error     string
	Artifacts []string // 产物类型：docx、pdf
}

type GenerationEventHandler = Handler[GenerationEvent]
type GenerationEventBus = Bus[GenerationEventType, GenerationEvent]

func NewGenerationEventBus() *GenerationEventBus {
	return NewBus[GenerationEventType, GenerationEvent]()
}
