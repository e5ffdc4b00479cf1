package shed

import "fmt"

// TaskID identifies a reserved task. The low 23 bits hold the 1-based slot
// index and the high 9 bits a generation stamp that changes every time the
// slot is reused. The zero TaskID is never handed out.
type TaskID uint32

const (
	generationShift        = 23
	indexMask       uint32 = 0x007fffff
	generationMask  uint32 = 0xff800000

	// MaxCapacity is the largest task or dependency count a scheduler can hold.
	MaxCapacity = indexMask
)

func makeTaskID(index, generation uint32) TaskID {
	return TaskID(index&indexMask | (generation<<generationShift)&generationMask)
}

// Index returns the 1-based slot index of the task.
func (id TaskID) Index() uint32 {
	return uint32(id) & indexMask
}

// Generation returns the reuse stamp of the task.
func (id TaskID) Generation() uint32 {
	return (uint32(id) & generationMask) >> generationShift
}

func (id TaskID) String() string {
	return fmt.Sprintf("task#%d.%d", id.Index(), id.Generation())
}
