package domain

// PatchOp discriminates the patch union.
type PatchOp string

const (
	PatchAppend   PatchOp = "append"
	PatchReplace  PatchOp = "replace"
	PatchRemove   PatchOp = "remove"
	PatchState    PatchOp = "state"
	PatchSet      PatchOp = "set"
	PatchNotify   PatchOp = "notify"
	PatchNavigate PatchOp = "navigate"
	PatchTool     PatchOp = "tool"
	PatchError    PatchOp = "error"
)

// Notify levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarn    = "warn"
	LevelError   = "error"
)

// Patch is one client-state mutation. Which fields are meaningful depends on
// Op; build patches with the constructors below rather than by hand.
type Patch struct {
	Op      PatchOp `json:"op"`
	Target  string  `json:"target,omitempty"`
	ID      string  `json:"id,omitempty"`
	Key     string  `json:"key,omitempty"`
	Value   any     `json:"value,omitempty"`
	Level   string  `json:"level,omitempty"`
	Message string  `json:"message,omitempty"`
	Route   string  `json:"route,omitempty"`
	Name    string  `json:"name,omitempty"`
	Args    any     `json:"args,omitempty"`
	Code    string  `json:"code,omitempty"`
	Details any     `json:"details,omitempty"`
}

// ChatMessage is the value appended to the messages list for chat turns.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func Append(target string, value any) Patch {
	return Patch{Op: PatchAppend, Target: target, Value: value}
}

func Replace(target string, value any) Patch {
	return Patch{Op: PatchReplace, Target: target, Value: value}
}

func Remove(target, id string) Patch {
	return Patch{Op: PatchRemove, Target: target, ID: id}
}

func State(value any) Patch {
	return Patch{Op: PatchState, Value: value}
}

func Set(key string, value any) Patch {
	return Patch{Op: PatchSet, Key: key, Value: value}
}

func Notify(level, message string) Patch {
	return Patch{Op: PatchNotify, Level: level, Message: message}
}

func Navigate(route string) Patch {
	return Patch{Op: PatchNavigate, Route: route}
}

func Tool(name string, args any) Patch {
	return Patch{Op: PatchTool, Name: name, Args: args}
}

func ErrorPatch(code, message string, details any) Patch {
	return Patch{Op: PatchError, Code: code, Message: message, Details: details}
}
