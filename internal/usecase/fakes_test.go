package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"github.com/google/uuid"
)

// events records the interleaving of decoder and processor calls.
type events struct {
	log []string
}

func (e *events) add(format string, args ...any) {
	if e != nil {
		e.log = append(e.log, fmt.Sprintf(format, args...))
	}
}

type fakePacket struct {
	stream   int
	released *int
}

func (p *fakePacket) StreamIndex() int { return p.stream }
func (p *fakePacket) Release()         { *p.released++ }

type fakeRaw struct {
	w, h int
	seq  int
}

func (f *fakeRaw) Width() int  { return f.w }
func (f *fakeRaw) Height() int { return f.h }

type fakeDecoder struct {
	// emits[k] is how many frames become available after the k-th video packet.
	emits   []int
	flush   int
	failAt  int
	w, h    int
	ev      *events
	sent    int
	pending []*fakeRaw
	seq     int
	eof     bool
	closed  bool
}

func (d *fakeDecoder) SendPacket(p port.Packet) error {
	if d.failAt > 0 && d.sent+1 == d.failAt {
		return errors.New("invalid data found when processing input")
	}
	n := 0
	if d.sent < len(d.emits) {
		n = d.emits[d.sent]
	}
	d.ev.add("send%d", d.sent)
	d.sent++
	d.queue(n)
	return nil
}

func (d *fakeDecoder) SendEOF() error {
	d.ev.add("eof")
	d.eof = true
	d.queue(d.flush)
	return nil
}

func (d *fakeDecoder) queue(n int) {
	for i := 0; i < n; i++ {
		d.pending = append(d.pending, &fakeRaw{w: d.w, h: d.h, seq: d.seq})
		d.seq++
	}
}

func (d *fakeDecoder) ReceiveFrame() (port.RawFrame, error) {
	if len(d.pending) == 0 {
		return nil, port.ErrFrameUnavailable
	}
	f := d.pending[0]
	d.pending = d.pending[1:]
	return f, nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

type fakeReader struct {
	streams  []entity.StreamDescriptor
	packets  []int
	decoder  *fakeDecoder
	readErr  error
	pos      int
	released int
	closed   bool
}

func (r *fakeReader) Streams() []entity.StreamDescriptor { return r.streams }

func (r *fakeReader) ReadPacket() (port.Packet, error) {
	if r.pos >= len(r.packets) {
		if r.readErr != nil {
			return nil, r.readErr
		}
		return nil, io.EOF
	}
	p := &fakePacket{stream: r.packets[r.pos], released: &r.released}
	r.pos++
	return p, nil
}

func (r *fakeReader) OpenDecoder(s entity.StreamDescriptor) (port.VideoDecoder, error) {
	r.decoder.w, r.decoder.h = s.Width, s.Height
	return r.decoder, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeRescaler struct {
	w, h   int
	out    entity.RescaledFrame
	closed bool
	fail   bool
}

func (s *fakeRescaler) Rescale(src port.RawFrame) (*entity.RescaledFrame, error) {
	if s.fail {
		return nil, errors.New("swscale failed")
	}
	raw := src.(*fakeRaw)
	s.out.Width, s.out.Height = s.w, s.h
	s.out.Pix = append(s.out.Pix[:0], byte(raw.seq))
	return &s.out, nil
}

func (s *fakeRescaler) Close() error {
	s.closed = true
	return nil
}

type fakeBackend struct {
	reader   *fakeReader
	rescaler *fakeRescaler
	openErr  error
}

func (b *fakeBackend) OpenContainer(_ context.Context, _ string) (port.ContainerReader, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.reader, nil
}

func (b *fakeBackend) NewRescaler(_ entity.StreamDescriptor, w, h int) (port.Rescaler, error) {
	b.rescaler.w, b.rescaler.h = w, h
	return b.rescaler, nil
}

type processed struct {
	index uint64
	seq   byte
	w, h  int
}

type recordingProcessor struct {
	name   string
	ev     *events
	seen   []processed
	failOn map[uint64]error
}

func (p *recordingProcessor) Name() string { return p.name }

func (p *recordingProcessor) Process(_ context.Context, f *entity.RescaledFrame, index uint64) (string, error) {
	if err, ok := p.failOn[index]; ok {
		return "", &entity.FrameError{Kind: entity.ErrWrite, Index: index, Err: err}
	}
	p.ev.add("%s%d", p.name, index)
	p.seen = append(p.seen, processed{index: index, seq: f.Pix[0], w: f.Width, h: f.Height})
	return fmt.Sprintf("frames/%s%d", p.name, index), nil
}

func (p *recordingProcessor) indices() []uint64 {
	out := make([]uint64, 0, len(p.seen))
	for _, s := range p.seen {
		out = append(out, s.index)
	}
	return out
}

type chunkRecorder struct {
	chunks []entity.Chunk
	err    error
}

func (c *chunkRecorder) ChunkCompleted(_ context.Context, chunk entity.Chunk) error {
	c.chunks = append(c.chunks, chunk)
	return c.err
}

func videoStream(w, h int, fps int64) entity.StreamDescriptor {
	return entity.StreamDescriptor{
		Index:        0,
		MediaType:    entity.MediaTypeVideo,
		Codec:        "h264",
		Width:        w,
		Height:       h,
		AvgFrameRate: entity.Rational{Num: fps, Den: 1},
	}
}

func newFakeBackend(streams []entity.StreamDescriptor, packets []int, dec *fakeDecoder) *fakeBackend {
	return &fakeBackend{
		reader:   &fakeReader{streams: streams, packets: packets, decoder: dec},
		rescaler: &fakeRescaler{},
	}
}

type memRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]entity.Run
}

func newMemRepo() *memRepo {
	return &memRepo{runs: map[uuid.UUID]entity.Run{}}
}

func (r *memRepo) Create(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *memRepo) Update(_ context.Context, run *entity.Run) error {
	return r.Create(context.Background(), run)
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &run, nil
}

type statusRecorder struct {
	msgs []entity.RunStatusMessage
}

func (s *statusRecorder) PublishStatus(_ context.Context, msg entity.RunStatusMessage) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

type dlqRecorder struct {
	bodies  [][]byte
	reasons []string
}

func (d *dlqRecorder) PublishToDLQ(_ context.Context, raw []byte, reason string) error {
	d.bodies = append(d.bodies, raw)
	d.reasons = append(d.reasons, reason)
	return nil
}

type notifierRecorder struct {
	calls []string
}

func (n *notifierRecorder) NotifyFailure(_ context.Context, userEmail, runID, _, _ string) error {
	n.calls = append(n.calls, userEmail+":"+runID)
	return nil
}

type fakeStorage struct {
	mu          sync.Mutex
	downloadErr error
	uploadErr   error
	downloads   []string
	uploads     map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: map[string][]byte{}}
}

func (s *fakeStorage) DownloadSource(_ context.Context, key, dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads = append(s.downloads, key)
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(dest, []byte("video"), 0o644)
}

func (s *fakeStorage) UploadArchive(_ context.Context, key string, r io.Reader, size int64) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return fmt.Errorf("size mismatch: got %d, declared %d", len(b), size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = b
	return nil
}

// listArchiver writes the archived paths, one per line, instead of a zip.
type listArchiver struct {
	created []string
}

func (a *listArchiver) CreateZip(_ context.Context, paths []string, out string) error {
	a.created = append(a.created, out)
	return os.WriteFile(out, []byte(strings.Join(paths, "\n")), 0o644)
}
