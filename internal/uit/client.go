package uit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultRequestTimeout = 120 * time.Second

type Option func(*Client)

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithFs sets the local filesystem used for uploads and downloads.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) {
		c.fs = fs
	}
}

// Client runs commands and transfers files through the gateway endpoints of one login node.
type Client struct {
	logger  *zap.Logger
	tracer  trace.Tracer
	session *Session
	retry   RetryPolicy
	timeout time.Duration
	fs      afero.Fs
	env     *Env

	mu        sync.RWMutex
	connected bool
	system    string
	loginNode string
	username  string
	uitURL    string
}

func NewClient(logger *zap.Logger, session *Session, opts ...Option) *Client {
	c := &Client{
		logger:  logger,
		tracer:  otel.Tracer("uit/client"),
		session: session,
		retry:   DefaultRetryPolicy(),
		timeout: DefaultRequestTimeout,
		fs:      afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.env = NewEnv(c)
	return c
}

// Connect selects a login node, either the one named or a random node of system. Exactly one of
// system and loginNode must be given.
func (c *Client) Connect(ctx context.Context, system, loginNode string) error {
	traceCtx, span := c.tracer.Start(ctx, "Connect")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	if (system == "") == (loginNode == "") {
		span.RecordError(ErrConnectTarget)
		return ErrConnectTarget
	}

	info, err := c.session.Userinfo(traceCtx)
	if err != nil {
		logger.Error("failed to get userinfo", zap.Error(err))
		span.RecordError(err)
		return err
	}

	node, systemName, err := selectLoginNode(info, system, loginNode)
	if err != nil {
		logger.Error("failed to select login node", zap.String("system", system), zap.String("login_node", loginNode), zap.Error(err))
		span.RecordError(err)
		return err
	}

	c.mu.Lock()
	c.system = systemName
	c.loginNode = shortHostname(node.Hostname)
	c.username = info.Systems[strings.ToUpper(systemName)].Username
	c.uitURL = strings.TrimSuffix(node.URLs.UIT, "/") + "/"
	c.connected = true
	c.mu.Unlock()

	logger.Info("connected to login node", zap.String("system", systemName), zap.String("login_node", c.loginNode))
	return nil
}

func selectLoginNode(info Userinfo, system, loginNode string) (LoginNode, string, error) {
	if system != "" {
		sys, ok := info.Systems[strings.ToUpper(system)]
		if !ok || len(sys.LoginNodes) == 0 {
			return LoginNode{}, "", fmt.Errorf("%w: %s", ErrSystemNotFound, system)
		}
		return sys.LoginNodes[rand.IntN(len(sys.LoginNodes))], strings.ToLower(system), nil
	}

	for name, sys := range info.Systems {
		for _, node := range sys.LoginNodes {
			if shortHostname(node.Hostname) == loginNode {
				return node, strings.ToLower(name), nil
			}
		}
	}
	return LoginNode{}, "", fmt.Errorf("%w: %s", ErrLoginNodeNotFound, loginNode)
}

func shortHostname(hostname string) string {
	short, _, _ := strings.Cut(hostname, ".")
	return short
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) System() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.system
}

func (c *Client) LoginNode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loginNode
}

func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Client) Env() *Env {
	return c.env
}

func (c *Client) Getenv(ctx context.Context, name string) (string, error) {
	return c.env.Get(ctx, name)
}

// Exec runs command in workingDir and returns both output streams. An unsuccessful command is
// not an error here; callers inspect ExecResult.OK.
func (c *Client) Exec(ctx context.Context, command, workingDir string) (ExecResult, error) {
	traceCtx, span := c.tracer.Start(ctx, "Exec")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	if !c.Connected() {
		span.RecordError(ErrNotConnected)
		return ExecResult{}, ErrNotConnected
	}
	if workingDir == "" {
		workingDir = "."
	}

	logger.Debug("exec", zap.String("command", command), zap.String("working_dir", workingDir))

	result, err := Retry(traceCtx, c.logger, c.retry, "Exec", []any{command, workingDir}, func(ctx context.Context) (ExecResult, error) {
		var result ExecResult
		err := c.post(ctx, "exec", map[string]string{"command": command, "workingdir": workingDir}, &result)
		if err != nil {
			return ExecResult{}, err
		}
		if !result.OK() && transientMessage(result.ErrorMessage()) {
			return ExecResult{}, &CommandError{Command: command, Message: result.ErrorMessage()}
		}
		return result, nil
	})
	if err != nil {
		logger.Error("failed to exec command", zap.String("command", command), zap.Error(err))
		span.RecordError(err)
		return ExecResult{}, err
	}

	return result, nil
}

// Call runs command in workingDir and returns stdout followed by stderr.
func (c *Client) Call(ctx context.Context, command, workingDir string) (string, error) {
	result, err := c.Exec(ctx, command, workingDir)
	if err != nil {
		return "", err
	}
	return commandOutput(command, result)
}

func commandOutput(command string, result ExecResult) (string, error) {
	if !result.OK() {
		return "", &CommandError{Command: command, Message: result.ErrorMessage()}
	}
	return result.Output(), nil
}

// PutFile uploads localPath to remotePath. A rejected upload is reported in the response, not as an error.
func (c *Client) PutFile(ctx context.Context, localPath, remotePath string) (PutFileResponse, error) {
	traceCtx, span := c.tracer.Start(ctx, "PutFile")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	if !c.Connected() {
		span.RecordError(ErrNotConnected)
		return PutFileResponse{}, ErrNotConnected
	}

	content, err := afero.ReadFile(c.fs, localPath)
	if err != nil {
		logger.Error("failed to read local file", zap.String("path", localPath), zap.Error(err))
		span.RecordError(err)
		return PutFileResponse{}, err
	}

	response, err := Retry(traceCtx, c.logger, c.retry, "PutFile", []any{localPath, remotePath}, func(ctx context.Context) (PutFileResponse, error) {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)

		options, err := json.Marshal(map[string]string{"file": remotePath})
		if err != nil {
			return PutFileResponse{}, err
		}
		if err := writer.WriteField("options", string(options)); err != nil {
			return PutFileResponse{}, err
		}
		part, err := writer.CreateFormFile("file", filepath.Base(localPath))
		if err != nil {
			return PutFileResponse{}, err
		}
		if _, err := part.Write(content); err != nil {
			return PutFileResponse{}, err
		}
		if err := writer.Close(); err != nil {
			return PutFileResponse{}, err
		}

		var response PutFileResponse
		if err := c.send(ctx, "putfile", &body, writer.FormDataContentType(), &response); err != nil {
			return PutFileResponse{}, err
		}
		if response.Failed() && transientMessage(response.Error) {
			return PutFileResponse{}, &CommandError{Command: "putfile " + remotePath, Message: response.Error}
		}
		return response, nil
	})
	if err != nil {
		logger.Error("failed to upload file", zap.String("local_path", localPath), zap.String("remote_path", remotePath), zap.Error(err))
		span.RecordError(err)
		return PutFileResponse{}, err
	}

	return response, nil
}

// GetFile downloads remotePath into localPath and returns localPath.
func (c *Client) GetFile(ctx context.Context, remotePath, localPath string) (string, error) {
	traceCtx, span := c.tracer.Start(ctx, "GetFile")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	if !c.Connected() {
		span.RecordError(ErrNotConnected)
		return "", ErrNotConnected
	}

	_, err := Retry(traceCtx, c.logger, c.retry, "GetFile", []any{remotePath, localPath}, func(ctx context.Context) (struct{}, error) {
		response, cancel, err := c.do(ctx, "getfile", map[string]string{"file": remotePath})
		if err != nil {
			return struct{}{}, err
		}
		defer cancel()
		defer func() {
			if cerr := response.Body.Close(); cerr != nil {
				logger.Error("failed to close response body", zap.Error(cerr))
			}
		}()

		if response.StatusCode != http.StatusOK {
			return struct{}{}, fmt.Errorf("gateway returned status code %d, the file %q may not exist or may not be readable", response.StatusCode, remotePath)
		}

		file, err := c.fs.Create(localPath)
		if err != nil {
			return struct{}{}, err
		}
		if _, err := io.Copy(file, response.Body); err != nil {
			_ = file.Close()
			return struct{}{}, err
		}
		return struct{}{}, file.Close()
	})
	if err != nil {
		logger.Error("failed to download file", zap.String("remote_path", remotePath), zap.Error(err))
		span.RecordError(err)
		return "", err
	}

	return localPath, nil
}

// ListDir lists path, defaulting to the remote home directory.
func (c *Client) ListDir(ctx context.Context, path string) (DirListing, error) {
	traceCtx, span := c.tracer.Start(ctx, "ListDir")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	if !c.Connected() {
		span.RecordError(ErrNotConnected)
		return DirListing{}, ErrNotConnected
	}

	if path == "" {
		home, err := c.env.Get(traceCtx, "HOME")
		if err != nil {
			logger.Error("failed to resolve home directory", zap.Error(err))
			span.RecordError(err)
			return DirListing{}, err
		}
		path = home
	}

	listing, err := Retry(traceCtx, c.logger, c.retry, "ListDir", []any{path}, func(ctx context.Context) (DirListing, error) {
		var listing DirListing
		if err := c.post(ctx, "listdirectory", map[string]string{"directory": path}, &listing); err != nil {
			return DirListing{}, err
		}
		if listing.Success == "false" && transientMessage(listing.Error) {
			return DirListing{}, &CommandError{Command: "listdirectory " + path, Message: listing.Error}
		}
		return listing, nil
	})
	if err != nil {
		logger.Error("failed to list directory", zap.String("path", path), zap.Error(err))
		span.RecordError(err)
		return DirListing{}, err
	}

	return listing, nil
}

// Status queries the scheduler for jobIDs, returning records in scheduler order.
func (c *Client) Status(ctx context.Context, jobIDs []string, full bool) ([]JobStatus, error) {
	traceCtx, span := c.tracer.Start(ctx, "Status")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	output, err := c.Call(traceCtx, StatusCommand(jobIDs, full), "")
	if err != nil {
		logger.Error("failed to query job status", zap.Strings("job_ids", jobIDs), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	var records []JobStatus
	if full {
		records, err = ParseFullStatus(output, jobIDs)
	} else {
		records, err = ParseStatus(output)
	}
	if err != nil {
		logger.Error("failed to parse job status", zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	return records, nil
}

func (c *Client) endpoint(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uitURL + name
}

// do posts form-encoded options to endpoint. The caller closes the body and then calls cancel.
func (c *Client) do(ctx context.Context, endpoint string, options map[string]string) (*http.Response, context.CancelFunc, error) {
	encoded, err := json.Marshal(options)
	if err != nil {
		return nil, nil, err
	}
	form := url.Values{"options": {string(encoded)}}

	return c.request(ctx, endpoint, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *Client) request(ctx context.Context, endpoint string, body io.Reader, contentType string) (*http.Response, context.CancelFunc, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)

	httpRequest, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint(endpoint), body)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	httpRequest.Header.Set("Content-Type", contentType)
	if err := c.session.authorize(httpRequest); err != nil {
		cancel()
		return nil, nil, err
	}

	response, err := c.session.httpClient.Do(httpRequest)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, nil, err
	}

	if response.StatusCode == http.StatusGatewayTimeout {
		_ = response.Body.Close()
		cancel()
		return nil, nil, ErrGatewayTimeout
	}

	return response, cancel, nil
}

func (c *Client) post(ctx context.Context, endpoint string, options map[string]string, v interface{}) error {
	response, cancel, err := c.do(ctx, endpoint, options)
	if err != nil {
		return err
	}
	defer cancel()
	return ParseResponse(ctx, response, v)
}

func (c *Client) send(ctx context.Context, endpoint string, body io.Reader, contentType string, v interface{}) error {
	response, cancel, err := c.request(ctx, endpoint, body, contentType)
	if err != nil {
		return err
	}
	defer cancel()
	return ParseResponse(ctx, response, v)
}

// ParseResponse decodes the JSON body of r into s. Any status outside 2xx is a *StatusError.
func ParseResponse(ctx context.Context, r *http.Response, s interface{}) error {
	_, span := otel.Tracer("uit/client").Start(ctx, "ParseResponse")
	defer span.End()

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer func() {
		err := r.Body.Close()
		if err != nil {
			fmt.Println("Error closing response body:", err)
		}
	}()

	if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
		err := &StatusError{StatusCode: r.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
		span.RecordError(err)
		return err
	}

	err = json.Unmarshal(bodyBytes, s)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to decode %d response: %w", r.StatusCode, err)
	}

	return nil
}
