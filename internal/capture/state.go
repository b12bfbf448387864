package capture

// State is a step of a capture run.
type State int

const (
	TerminateStale State = iota
	Launch
	AwaitLogin
	EnableCameras
	RestoreList
	CaptureCameras
	Shutdown
	Done
	Aborted
)

var stateNames = [...]string{
	TerminateStale: "terminate_stale",
	Launch:         "launch",
	AwaitLogin:     "await_login",
	EnableCameras:  "enable_cameras",
	RestoreList:    "restore_list",
	CaptureCameras: "capture_cameras",
	Shutdown:       "shutdown",
	Done:           "done",
	Aborted:        "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further step follows s.
func (s State) Terminal() bool {
	return s == Done || s == Aborted
}
