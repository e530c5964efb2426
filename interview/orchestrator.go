// Package interview runs a PRD interview: it captures the operator's request,
// launches an agent on a PTY and answers the agent's clarifying questions
// until the agent confirms the PRD was saved or exits without doing so.
package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/ralph/internal/agent"
	"pkt.systems/ralph/internal/logx"
	"pkt.systems/ralph/internal/persist"
	"pkt.systems/ralph/internal/promptfile"
	"pkt.systems/ralph/schema"
)

const (
	defaultDrainTimeout = 500 * time.Millisecond
	defaultExitWait     = 3 * time.Second
	defaultPromptSettle = 200 * time.Millisecond
	defaultAnswerPrompt = "? "
	maxPendingLine      = 64 * 1024
)

// LineReader reads one edited line from the operator.
type LineReader interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Interrupter is implemented by line readers that can report an operator
// interrupt while no line is being edited.
type Interrupter interface {
	WaitInterrupt(ctx context.Context) error
}

// Session is a running agent.
type Session interface {
	Output() io.Reader
	Write(p []byte) (int, error)
	Resize(cols, rows int) error
	Done() <-chan struct{}
	Wait(ctx context.Context) (agent.ExitStatus, error)
	Terminate()
	Close() error
}

// Launcher starts agent sessions.
type Launcher interface {
	Launch(ctx context.Context, req agent.Request) (Session, error)
}

// Recorder persists interview diagnostics records.
type Recorder interface {
	Save(record persist.InterviewRecord) error
	Path(id schema.SessionID) string
}

// AgentLauncher adapts an agent.Launcher to the Launcher interface.
type AgentLauncher struct {
	Launcher *agent.Launcher
}

// Launch starts the agent.
func (l AgentLauncher) Launch(ctx context.Context, req agent.Request) (Session, error) {
	sess, err := l.Launcher.Launch(ctx, req)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Config describes one interview.
type Config struct {
	Agent          schema.AgentName
	DisplayName    string
	Command        string
	ArtifactPath   string
	PromptPath     string
	PromptTemplate string
	SavedPhrase    string
	WorkingDir     string
	RequestPrompt  string
	AnswerPrompt   string
	Markers        Markers
	TailLines      int
	// DrainTimeout bounds how long output is read after the agent exits.
	DrainTimeout time.Duration
	// ExitWait is how long a confirmed agent may keep running before it is
	// terminated.
	ExitWait time.Duration
	// PromptSettle is how long an unterminated line must stay unchanged
	// before it is matched as a prompt.
	PromptSettle time.Duration
	Cols         int
	Rows         int
}

func (c Config) withDefaults() Config {
	if c.RequestPrompt == "" {
		c.RequestPrompt = schema.DefaultRequestPrompt
	}
	if c.AnswerPrompt == "" {
		c.AnswerPrompt = defaultAnswerPrompt
	}
	if c.SavedPhrase == "" {
		c.SavedPhrase = promptfile.DefaultSavedPhrase
	}
	if len(c.Markers) == 0 {
		c.Markers = DefaultMarkers()
	}
	if c.TailLines <= 0 {
		c.TailLines = schema.DefaultTranscriptTailLines
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	if c.ExitWait <= 0 {
		c.ExitWait = defaultExitWait
	}
	if c.PromptSettle <= 0 {
		c.PromptSettle = defaultPromptSettle
	}
	return c
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Editor   LineReader
	Launcher Launcher
	// Output receives the agent transcript and user-facing messages.
	Output io.Writer
	// Records is optional.
	Records Recorder
}

// Result summarizes a finished interview.
type Result struct {
	SessionID    schema.SessionID
	Phase        schema.Phase
	Request      string
	Questions    []string
	Answers      []string
	Tail         []string
	Exit         agent.ExitStatus
	ArtifactPath string
	RecordPath   string
}

// Orchestrator drives a single interview.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu   sync.Mutex
	sess Session
	cols int
	rows int
}

// New constructs an orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Editor == nil {
		return nil, errors.New("interview: line editor is required")
	}
	if deps.Launcher == nil {
		return nil, errors.New("interview: launcher is required")
	}
	if strings.TrimSpace(cfg.ArtifactPath) == "" {
		return nil, errors.New("interview: artifact path is required")
	}
	if deps.Output == nil {
		deps.Output = io.Discard
	}
	cfg = cfg.withDefaults()
	return &Orchestrator{cfg: cfg, deps: deps, cols: cfg.Cols, rows: cfg.Rows}, nil
}

// Resize records the operator's window size and forwards it to the running
// agent, if any.
func (o *Orchestrator) Resize(cols, rows int) {
	o.mu.Lock()
	o.cols, o.rows = cols, rows
	sess := o.sess
	o.mu.Unlock()
	if sess != nil {
		_ = sess.Resize(cols, rows)
	}
}

func (o *Orchestrator) setSession(sess Session) {
	o.mu.Lock()
	o.sess = sess
	o.mu.Unlock()
}

// Run captures the request, interviews the agent and classifies the outcome.
// It returns nil only when the agent confirmed the save and the artifact
// exists.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	id := schema.SessionID(uuid.NewString())
	log := logx.WithAgentSession(ctx, o.cfg.Agent, id)
	ctx = logx.ContextWithAgentSessionLogger(ctx, log, o.cfg.Agent, id)

	r := &run{
		o:     o,
		ctx:   ctx,
		log:   log,
		state: NewState(),
		tail:  newTail(o.cfg.TailLines),
		record: persist.InterviewRecord{
			SessionID:    id,
			Agent:        o.cfg.Agent,
			ArtifactPath: o.cfg.ArtifactPath,
			PromptPath:   o.cfg.PromptPath,
			StartedAt:    time.Now().UTC(),
		},
	}
	err := r.execute()
	return r.result(), err
}

type run struct {
	o      *Orchestrator
	ctx    context.Context
	log    pslog.Logger
	state  *State
	tail   *tail
	record persist.InterviewRecord
	sess   Session
	watch  *watcher
	exit   agent.ExitStatus
	before fileStamp

	pending        string
	pendingMatched bool
}

func (r *run) execute() error {
	request, err := r.o.deps.Editor.ReadLine(r.ctx, r.o.cfg.RequestPrompt)
	if err != nil {
		switch {
		case errors.Is(err, schema.ErrEmptyInput), errors.Is(err, io.EOF):
			r.log.Info("interview request empty")
			return schema.ErrEmptyInput
		case errors.Is(err, schema.ErrInterviewCancelled):
			r.state.Cancel()
			r.log.Info("interview cancelled at request prompt")
			return schema.ErrInterviewCancelled
		case r.ctx.Err() != nil:
			r.state.Cancel()
			return fmt.Errorf("%w: %w", schema.ErrInterviewCancelled, r.ctx.Err())
		default:
			return err
		}
	}
	r.record.Request = request
	if err := r.state.RequestSent(); err != nil {
		return err
	}
	r.log.Info("interview request captured", "request_len", len(request))

	r.before = statFile(r.o.cfg.ArtifactPath)
	r.o.mu.Lock()
	cols, rows := r.o.cols, r.o.rows
	r.o.mu.Unlock()
	sess, err := r.o.deps.Launcher.Launch(r.ctx, agent.Request{
		Agent:          r.o.cfg.Agent,
		Command:        r.o.cfg.Command,
		Request:        request,
		PromptPath:     r.o.cfg.PromptPath,
		PromptTemplate: r.o.cfg.PromptTemplate,
		SavedPhrase:    r.o.cfg.SavedPhrase,
		ArtifactPath:   r.o.cfg.ArtifactPath,
		WorkingDir:     r.o.cfg.WorkingDir,
		Cols:           cols,
		Rows:           rows,
	})
	if err != nil {
		r.record.Error = err.Error()
		r.save()
		return err
	}
	r.sess = sess
	r.o.setSession(sess)
	defer func() {
		r.o.setSession(nil)
		_ = sess.Close()
	}()
	r.save()

	err = r.converse()
	r.record.Tail = r.tail.Lines()
	if err != nil {
		if errors.Is(err, schema.ErrInterviewCancelled) {
			r.record.Error = err.Error()
			r.discardArtifact()
		}
		r.save()
		return err
	}
	return r.classify()
}

func (r *run) converse() error {
	chunks := make(chan []byte, 16)
	go pumpOutput(r.sess.Output(), chunks)
	r.watch = r.startWatch()
	defer func() { _ = r.watch.stop() }()

	settle := time.NewTimer(r.o.cfg.PromptSettle)
	settle.Stop()
	defer settle.Stop()

	done := r.sess.Done()
	var drain <-chan time.Time
	var exitWait <-chan time.Time
	var settled <-chan time.Time
	for {
		if exitWait == nil && r.state.Phase() == schema.PhaseSucceeded && done != nil {
			timer := time.NewTimer(r.o.cfg.ExitWait)
			defer timer.Stop()
			exitWait = timer.C
		}
		select {
		case <-r.ctx.Done():
			return r.cancelled(r.ctx.Err())
		case err := <-r.watch.fired():
			r.watch.finished = true
			if errors.Is(err, schema.ErrInterviewCancelled) {
				return r.cancelled(nil)
			}
		case chunk, ok := <-chunks:
			if !ok {
				if err := r.flushPending(); err != nil {
					return r.interrupted(err)
				}
				return r.awaitExit(done)
			}
			settled = nil
			if err := r.consume(chunk); err != nil {
				return r.interrupted(err)
			}
			if r.pending != "" && !r.pendingMatched {
				settle.Reset(r.o.cfg.PromptSettle)
				settled = settle.C
			}
		case <-settled:
			settled = nil
			if err := r.settlePending(); err != nil {
				return r.interrupted(err)
			}
		case <-done:
			done = nil
			timer := time.NewTimer(r.o.cfg.DrainTimeout)
			defer timer.Stop()
			drain = timer.C
		case <-drain:
			r.log.Debug("agent output drain timed out")
			if err := r.flushPending(); err != nil {
				return r.interrupted(err)
			}
			return r.awaitExit(nil)
		case <-exitWait:
			r.log.Info("agent still running after save confirmation, terminating")
			go r.sess.Terminate()
		}
	}
}

// awaitExit waits for the agent once its output has ended.
func (r *run) awaitExit(done <-chan struct{}) error {
	if done != nil {
		timer := time.NewTimer(r.o.cfg.ExitWait)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			r.log.Warn("agent output closed but process still running")
			r.sess.Terminate()
		case <-r.ctx.Done():
			return r.cancelled(r.ctx.Err())
		}
	}
	status, err := r.sess.Wait(r.ctx)
	if err != nil && r.ctx.Err() != nil {
		return r.cancelled(r.ctx.Err())
	}
	r.exit = status
	code := status.Code
	r.record.ExitCode = &code
	return nil
}

// interrupted maps an operator cancel raised while handling output.
func (r *run) interrupted(err error) error {
	if errors.Is(err, schema.ErrInterviewCancelled) {
		return r.cancelled(nil)
	}
	return err
}

func (r *run) cancelled(cause error) error {
	from := r.state.Phase()
	phase := r.state.Cancel()
	logx.WithPhase(r.log, phase).Info("interview cancelled", "from_phase", from.String())
	r.sess.Terminate()
	if cause != nil {
		return fmt.Errorf("%w: %w", schema.ErrInterviewCancelled, cause)
	}
	return schema.ErrInterviewCancelled
}

// consume echoes agent output and acts on marker lines in order. An answer is
// forwarded before any later output is examined. An unterminated line is only
// held; settlePending matches it once the agent has gone quiet.
func (r *run) consume(chunk []byte) error {
	data := string(chunk)
	for data != "" {
		var seg string
		complete := false
		if idx := strings.IndexByte(data, '\n'); idx >= 0 {
			seg, data = data[:idx+1], data[idx+1:]
			complete = true
		} else {
			seg, data = data, ""
		}
		r.echo(seg)

		line := r.pending + seg
		matched := r.pendingMatched
		if complete || len(line) > maxPendingLine {
			r.pending, r.pendingMatched = "", false
			r.tail.Append(CleanLine(line))
		} else {
			r.pending = line
			continue
		}
		if matched {
			continue
		}
		if kind, ok := r.o.cfg.Markers.Match(line); ok {
			if err := r.handle(kind, CleanLine(line), false); err != nil {
				return err
			}
		}
	}
	return nil
}

// settlePending matches the held partial line, typically a prompt waiting
// for input. The rest of that line is echoed but not matched again.
func (r *run) settlePending() error {
	if r.pending == "" || r.pendingMatched {
		return nil
	}
	kind, ok := r.o.cfg.Markers.Match(r.pending)
	if !ok {
		return nil
	}
	r.pendingMatched = true
	return r.handle(kind, CleanLine(r.pending), true)
}

// flushPending settles and records the held line once output has ended.
func (r *run) flushPending() error {
	if r.pending == "" {
		return nil
	}
	err := r.settlePending()
	r.tail.Append(CleanLine(r.pending))
	r.pending, r.pendingMatched = "", false
	return err
}

func (r *run) handle(kind schema.MarkerKind, text string, partial bool) error {
	if r.state.Phase() == schema.PhaseSucceeded {
		return nil
	}
	switch kind {
	case schema.MarkerSaved:
		if err := r.state.Saved(); err != nil {
			r.log.Warn("interview save marker ignored", "err", err)
			return nil
		}
		r.log.Info("interview save confirmed", "questions", len(r.state.questions))
		r.save()
	case schema.MarkerQuestion:
		if err := r.state.Question(text); err != nil {
			r.log.Warn("interview question ignored", "err", err)
			return nil
		}
		r.log.Info("interview question", "index", r.state.QuestionIndex())
		return r.ask(text, partial)
	}
	return nil
}

func (r *run) ask(question string, partial bool) error {
	select {
	case <-r.sess.Done():
		r.log.Debug("interview question after agent exit", "index", r.state.QuestionIndex())
		return nil
	default:
	}
	if partial {
		r.echo("\r\n")
	}
	if err := r.watch.stop(); errors.Is(err, schema.ErrInterviewCancelled) {
		return err
	}

	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()
	go func() {
		select {
		case <-r.sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	answer, err := r.o.deps.Editor.ReadLine(ctx, r.o.cfg.AnswerPrompt)
	switch {
	case err == nil, errors.Is(err, schema.ErrEmptyInput):
	case errors.Is(err, schema.ErrInterviewCancelled):
		return err
	case r.ctx.Err() != nil:
		return fmt.Errorf("%w: %w", schema.ErrInterviewCancelled, r.ctx.Err())
	case errors.Is(err, context.Canceled):
		r.log.Info("agent exited while awaiting answer", "index", r.state.QuestionIndex())
		return nil
	case errors.Is(err, io.EOF):
		r.log.Info("operator input closed while awaiting answer")
		return schema.ErrInterviewCancelled
	default:
		return err
	}

	if _, err := r.sess.Write([]byte(answer + "\r")); err != nil {
		r.log.Warn("interview answer not forwarded", "index", r.state.QuestionIndex(), "err", err)
	}
	if err := r.state.Answer(answer); err != nil {
		return err
	}
	index := r.state.QuestionIndex()
	r.record.Answers = append(r.record.Answers, persist.AnswerRecord{
		Index:    index + 1,
		Question: question,
		Answer:   answer,
		At:       time.Now().UTC(),
	})
	r.log.Info("interview answer forwarded", "index", index, "answer_len", len(answer))
	r.save()
	r.watch = r.startWatch()
	return nil
}

// classify assigns the terminal phase once the agent has exited.
func (r *run) classify() error {
	phase, err := r.state.Exited()
	if err != nil {
		return err
	}
	logx.WithPhase(r.log, phase).Info(
		"interview finished",
		"exit_code", r.exit.Code,
		"questions", len(r.state.questions),
		"answers", len(r.state.answers),
	)
	defer r.save()
	if phase == schema.PhaseSucceeded {
		if !statFile(r.o.cfg.ArtifactPath).exists {
			r.record.Error = schema.ErrArtifactMissing.Error()
			r.writeLine(fmt.Sprintf("%s confirmed the save but %s does not exist.", r.displayName(), r.o.cfg.ArtifactPath))
			return schema.Reported(schema.ErrArtifactMissing)
		}
		return nil
	}

	r.discardArtifact()
	r.record.Error = schema.ErrNoConfirmation.Error()
	r.writeLine(Diagnose(Diagnostic{
		Agent:       r.o.cfg.Agent,
		DisplayName: r.o.cfg.DisplayName,
		Command:     r.o.cfg.Command,
		SavedPhrase: r.o.cfg.SavedPhrase,
		ExitCode:    r.exit.Code,
		RecordPath:  r.recordPath(),
		Tail:        r.tail.Lines(),
	}))
	return schema.Reported(schema.ErrNoConfirmation)
}

// discardArtifact removes an artifact written during a failed session so no
// partial document is left at the output path.
func (r *run) discardArtifact() {
	after := statFile(r.o.cfg.ArtifactPath)
	if !after.exists || after.same(r.before) {
		return
	}
	if err := os.Remove(r.o.cfg.ArtifactPath); err != nil {
		r.log.Warn("unconfirmed artifact not removed", "path", r.o.cfg.ArtifactPath, "err", err)
		return
	}
	r.log.Info("unconfirmed artifact removed", "path", r.o.cfg.ArtifactPath)
}

func (r *run) displayName() string {
	if name := strings.TrimSpace(r.o.cfg.DisplayName); name != "" {
		return name
	}
	return r.o.cfg.Agent.DisplayName()
}

func (r *run) echo(s string) {
	_, _ = io.WriteString(r.o.deps.Output, s)
}

func (r *run) writeLine(text string) {
	text = strings.ReplaceAll(strings.TrimRight(text, "\n"), "\n", "\r\n")
	r.echo(text + "\r\n")
}

func (r *run) save() {
	if r.o.deps.Records == nil {
		return
	}
	r.record.Phase = r.state.Phase().String()
	r.record.UpdatedAt = time.Now().UTC()
	if err := r.o.deps.Records.Save(r.record); err != nil {
		r.log.Warn("interview record not saved", "err", err)
	}
}

func (r *run) recordPath() string {
	if r.o.deps.Records == nil {
		return ""
	}
	return r.o.deps.Records.Path(r.record.SessionID)
}

func (r *run) result() Result {
	return Result{
		SessionID:    r.record.SessionID,
		Phase:        r.state.Phase(),
		Request:      r.record.Request,
		Questions:    r.state.Questions(),
		Answers:      r.state.Answers(),
		Tail:         r.tail.Lines(),
		Exit:         r.exit,
		ArtifactPath: r.o.cfg.ArtifactPath,
		RecordPath:   r.recordPath(),
	}
}

func pumpOutput(src io.Reader, chunks chan<- []byte) {
	defer close(chunks)
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}

// watcher listens for an operator interrupt between questions.
type watcher struct {
	cancel   context.CancelFunc
	done     chan error
	finished bool
}

func (r *run) startWatch() *watcher {
	w := &watcher{done: make(chan error, 1)}
	ir, ok := r.o.deps.Editor.(Interrupter)
	if !ok {
		return w
	}
	ctx, cancel := context.WithCancel(r.ctx)
	w.cancel = cancel
	go func() { w.done <- ir.WaitInterrupt(ctx) }()
	return w
}

// fired yields the watch result once; it is nil when nothing is watching.
func (w *watcher) fired() <-chan error {
	if w == nil || w.cancel == nil || w.finished {
		return nil
	}
	return w.done
}

// stop ends the watch and waits for it so the editor is free for ReadLine.
func (w *watcher) stop() error {
	if w == nil || w.cancel == nil {
		return nil
	}
	w.cancel()
	w.cancel = nil
	if w.finished {
		return nil
	}
	w.finished = true
	return <-w.done
}

type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func statFile(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fileStamp{}
	}
	return fileStamp{exists: true, size: info.Size(), modTime: info.ModTime()}
}

func (f fileStamp) same(other fileStamp) bool {
	return f.exists == other.exists && f.size == other.size && f.modTime.Equal(other.modTime)
}
