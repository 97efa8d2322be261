package acquire

// Kind identifies one instrumented acquisition-layer call.
type Kind uint32

// Acquisition-layer call kinds, in wire order.
const (
	KindOpen Kind = iota
	KindReadScatter
	KindWriteScatter
	KindGetOption
	KindSetOption
	KindCommandData
	KindClose

	// KindMax is the highest valid Kind.
	KindMax = KindClose
)

var kindNames = [KindMax + 1]string{
	"LeechCore_Open",
	"LeechCore_ReadScatter",
	"LeechCore_WriteScatter",
	"LeechCore_GetOption",
	"LeechCore_SetOption",
	"LeechCore_CommandData",
	"LeechCore_Close",
}

// Name returns the display name of k, or "" when k is out of range.
func (k Kind) Name() string {
	if k > KindMax {
		return ""
	}
	return kindNames[k]
}

func (k Kind) String() string {
	return k.Name()
}
