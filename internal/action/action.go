package action

type Action int

const (
	Undecided Action = iota // 0：Undecided
	Allow                   // 1：Pass
	Deny                    // 2：Reject
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "undecided"
	}
}

type Reason int

const (
	NoReason Reason = iota
	NotInAllowList
	InDenyList
)

func (r Reason) String() string {
	switch r {
	case NotInAllowList:
		return "not in allow list"
	case InDenyList:
		return "in deny list"
	default:
		return ""
	}
}

// Decision saves the result of the decision
type Decision struct {
	result Action
	reason Reason
}

func NewDecision() *Decision {
	return &Decision{result: Undecided}
}

func (d *Decision) Get() Action {
	return d.result
}

func (d *Decision) Set(new Action) {
	d.result = new
}

// SetDeny records a rejection together with why it happened.
func (d *Decision) SetDeny(reason Reason) {
	d.result = Deny
	d.reason = reason
}

func (d *Decision) Reason() Reason {
	return d.reason
}

func (d *Decision) Allowed() bool {
	return d.result == Allow
}
