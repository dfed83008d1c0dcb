package workflow

// ArgState describes one argument's input state while a workflow form is
// being filled in.
type ArgState string

const (
	// StateEmpty means no value entered and no default applied.
	StateEmpty ArgState = "empty"
	// StateValid means the entered or defaulted value passes validation.
	StateValid ArgState = "valid"
	// StateInvalid means the entered value fails validation.
	StateInvalid ArgState = "invalid"
)

// argSlot tracks one argument's entered value and derived state.
type argSlot struct {
	arg     *Argument
	value   string
	entered bool
	state   ArgState
	reason  string
}

// Binding is the mutable fill-in state for one workflow's arguments. It is
// not safe for concurrent use.
type Binding struct {
	wf    *Workflow
	slots map[string]*argSlot
	order []string
}

// NewBinding creates fill-in state for the workflow. Arguments with defaults
// start valid; everything else starts empty.
func NewBinding(wf *Workflow) *Binding {
	b := &Binding{
		wf:    wf,
		slots: make(map[string]*argSlot, len(wf.Arguments)),
	}
	for i := range wf.Arguments {
		arg := &wf.Arguments[i]
		slot := &argSlot{arg: arg, state: StateEmpty}
		if arg.DefaultValue != nil {
			slot.value = *arg.DefaultValue
			slot.state = StateValid
		}
		b.slots[arg.Name] = slot
		b.order = append(b.order, arg.Name)
	}
	return b
}

// Set enters a value for the named argument and revalidates it. Unknown
// names are ignored.
func (b *Binding) Set(name, value string) {
	slot, ok := b.slots[name]
	if !ok {
		return
	}
	slot.value = value
	slot.entered = true
	if err := CheckValue(slot.arg, value); err != nil {
		slot.state = StateInvalid
		slot.reason = err.Error()
		return
	}
	slot.state = StateValid
	slot.reason = ""
}

// Clear reverts the named argument to its default, or to empty if it has
// none.
func (b *Binding) Clear(name string) {
	slot, ok := b.slots[name]
	if !ok {
		return
	}
	slot.entered = false
	slot.reason = ""
	if slot.arg.DefaultValue != nil {
		slot.value = *slot.arg.DefaultValue
		slot.state = StateValid
		return
	}
	slot.value = ""
	slot.state = StateEmpty
}

// State returns the named argument's state and, for invalid values, the
// validation failure reason.
func (b *Binding) State(name string) (ArgState, string) {
	slot, ok := b.slots[name]
	if !ok {
		return StateEmpty, ""
	}
	return slot.state, slot.reason
}

// Submittable reports whether the form can be submitted: no argument is
// invalid and every required argument has a value.
func (b *Binding) Submittable() bool {
	for _, name := range b.order {
		slot := b.slots[name]
		if slot.state == StateInvalid {
			return false
		}
		if slot.arg.Required && slot.state == StateEmpty {
			return false
		}
	}
	return true
}

// Values returns the current entered and defaulted values, suitable for
// Resolve. Empty slots are omitted.
func (b *Binding) Values() map[string]string {
	out := make(map[string]string, len(b.slots))
	for name, slot := range b.slots {
		if slot.state == StateEmpty {
			continue
		}
		out[name] = slot.value
	}
	return out
}
