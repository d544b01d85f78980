package uit

import "encoding/json"

// ExecResult is the response of the exec endpoint.
type ExecResult struct {
	Success string `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Error   string `json:"error"`
}

func (r ExecResult) OK() bool {
	return r.Success == "true"
}

// Output joins stdout and stderr the way the gateway's callers consume them.
func (r ExecResult) Output() string {
	return r.Stdout + r.Stderr
}

// ErrorMessage is the gateway's error text, or stderr when the gateway left it empty.
func (r ExecResult) ErrorMessage() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Stderr
}

// PutFileResponse is the response of the putfile endpoint. Success is "false" on failure.
type PutFileResponse struct {
	Success string `json:"success"`
	Error   string `json:"error"`
	File    string `json:"file"`
}

func (r PutFileResponse) Failed() bool {
	return r.Success == "false"
}

type DirEntry struct {
	Perms        string      `json:"perms"`
	Type         string      `json:"type"`
	Owner        string      `json:"owner"`
	Group        string      `json:"group"`
	Size         json.Number `json:"size"`
	LastModified string      `json:"lastmodified"`
	Path         string      `json:"path"`
	Name         string      `json:"name"`
}

// DirListing is the response of the listdirectory endpoint. On failure Path is empty and
// Success/Error carry the gateway's message.
type DirListing struct {
	Path    string     `json:"path"`
	Dirs    []DirEntry `json:"dirs"`
	Files   []DirEntry `json:"files"`
	Success string     `json:"success,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// JobStatus is one scheduler record. The table listing truncates JobID, so it is a prefix of
// the id returned at submission.
type JobStatus struct {
	JobID       string         `json:"job_id"`
	Name        string         `json:"name"`
	Username    string         `json:"username"`
	ElapsedTime string         `json:"elapsed_time"`
	Status      string         `json:"status"`
	Queue       string         `json:"queue"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

type LoginNode struct {
	Hostname string `json:"HOSTNAME"`
	URLs     struct {
		UIT string `json:"UIT"`
	} `json:"URLS"`
}

type SystemInfo struct {
	Username   string      `json:"USERNAME"`
	LoginNodes []LoginNode `json:"LOGIN_NODES"`
}

// Userinfo lists the systems and login nodes a token grants access to. System keys are upper case.
type Userinfo struct {
	Username string                `json:"USERNAME"`
	Systems  map[string]SystemInfo `json:"SYSTEMS"`
}

type userinfoResponse struct {
	Userinfo Userinfo `json:"userinfo"`
}
