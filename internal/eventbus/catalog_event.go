package eventbus

type CatalogEventType string

const (
	CatalogEventFormatChanged CatalogEventType = "FormatChanged"
	CatalogEventReloaded      CatalogEventType = "CatalogReloaded"
)

type CatalogEvent struct {
	Type   CatalogEventType
	Change string // create, modify, delete
	Path   string
}

type CatalogEventHandler = Handler[CatalogEvent]
type CatalogEventBus = Bus[CatalogEventType, CatalogEvent]

func NewCatalogEventBus() *CatalogEventBus {
	return NewBus[CatalogEventType, CatalogEvent]()
}
