package request

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestResourcePaths(t *testing.T) {
	t.Run("subscribe builds subscription path without body", func(t *testing.T) {
		r := Subscribe("alice-client", "weather")
		assert.Equal(t, PUT, r.Method)
		assert.Equal(t, "/subscription/alice-client/weather", r.Resource)
		assert.False(t, r.HasBody())
	})

	t.Run("unsubscribe deletes the same subscription path", func(t *testing.T) {
		r := Unsubscribe("alice-client", "weather")
		assert.Equal(t, DELETE, r.Method)
		assert.Equal(t, "/subscription/alice-client/weather", r.Resource)
		assert.Nil(t, r.Body)
	})

	t.Run("publish builds topic path with body", func(t *testing.T) {
		r := Publish("weather", []byte("rain today"))
		assert.Equal(t, PUT, r.Method)
		assert.Equal(t, "/topic/weather", r.Resource)
		assert.Equal(t, []byte("rain today"), r.Body)
	})

	t.Run("fetch builds queue path", func(t *testing.T) {
		r := Fetch("alice")
		assert.Equal(t, GET, r.Method)
		assert.Equal(t, "/queue/alice", r.Resource)
		assert.False(t, r.HasBody())
	})

	t.Run("new copies the body", func(t *testing.T) {
		body := []byte("abc")
		r := New(PUT, "/topic/x", body)
		body[0] = 'z'
		assert.Equal(t, "abc", string(r.Body))
	})
}

func TestEncode(t *testing.T) {
	t.Run("request with body carries content length", func(t *testing.T) {
		r := Publish("weather", []byte("hello"))
		assert.Equal(t, "PUT /topic/weather HTTP/1.0\r\nContent-Length: 5\r\n\r\nhello", string(r.Encode()))
	})

	t.Run("request without body omits content length", func(t *testing.T) {
		r := Fetch("alice")
		assert.Equal(t, "GET /queue/alice HTTP/1.0\r\n\r\n", string(r.Encode()))
	})

	t.Run("write to matches encode", func(t *testing.T) {
		var buf bytes.Buffer
		r := Subscribe("alice", "news")
		n, err := r.WriteTo(&buf)
		require.NoError(t, err)
		assert.Equal(t, int64(buf.Len()), n)
		assert.Equal(t, r.Encode(), buf.Bytes())
	})

	t.Run("control requests are never written", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := Control().WriteTo(&buf)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Zero(t, buf.Len())
	})
}

func TestRoundTrip(t *testing.T) {
	t.Run("body survives encode and decode", func(t *testing.T) {
		in := New(PUT, "/topic/greetings", []byte("hello"))
		out, err := Read(bufio.NewReader(bytes.NewReader(in.Encode())))
		require.NoError(t, err)
		assert.Equal(t, in.Method, out.Method)
		assert.Equal(t, in.Resource, out.Resource)
		assert.Equal(t, "hello", string(out.Body))
		assert.False(t, out.IsControl())
	})

	t.Run("bodiless request decodes without body", func(t *testing.T) {
		in := Unsubscribe("bob", "sports")
		out, err := Read(bufio.NewReader(bytes.NewReader(in.Encode())))
		require.NoError(t, err)
		assert.Equal(t, DELETE, out.Method)
		assert.Equal(t, "/subscription/bob/sports", out.Resource)
		assert.False(t, out.HasBody())
	})

	t.Run("unknown method is malformed", func(t *testing.T) {
		_, err := Read(reader("POST /topic/x HTTP/1.0\r\n\r\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("incomplete request line is malformed", func(t *testing.T) {
		_, err := Read(reader("GET\r\n\r\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestReadResponse(t *testing.T) {
	t.Run("content length is honored exactly", func(t *testing.T) {
		br := reader("HTTP/1.0 200 OK\r\nContent-Length: 5\r\n\r\nhellotrailing garbage")
		resp, err := ReadResponse(br)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(resp.Body))

		rest, _ := br.ReadString(0)
		assert.Equal(t, "trailing garbage", rest)
	})

	t.Run("other headers are skipped and header name is case insensitive", func(t *testing.T) {
		resp, err := ReadResponse(reader("HTTP/1.0 200 OK\r\nServer: mq\r\ncontent-length: 3\r\n\r\nabc"))
		require.NoError(t, err)
		assert.Equal(t, "abc", string(resp.Body))
	})

	t.Run("non success status is an error", func(t *testing.T) {
		br := reader("HTTP/1.0 404 Not Found\r\nContent-Length: 3\r\n\r\nnope")
		_, err := ReadResponse(br)
		assert.ErrorIs(t, err, ErrStatus)
		_, err = br.ReadByte()
		assert.Error(t, err, "failure responses are drained")
	})

	t.Run("missing content length yields no message", func(t *testing.T) {
		resp, err := ReadResponse(reader("HTTP/1.0 200 OK\r\n\r\n"))
		require.NoError(t, err)
		_, err = resp.Message("/queue/alice")
		assert.ErrorIs(t, err, ErrNoBody)
	})

	t.Run("zero content length yields no message", func(t *testing.T) {
		resp, err := ReadResponse(reader("HTTP/1.0 200 OK\r\nContent-Length: 0\r\n\r\n"))
		require.NoError(t, err)
		_, err = resp.Message("/queue/alice")
		assert.ErrorIs(t, err, ErrNoBody)
	})

	t.Run("unparsable content length yields no message", func(t *testing.T) {
		resp, err := ReadResponse(reader("HTTP/1.0 200 OK\r\nContent-Length: five\r\n\r\nhello"))
		require.NoError(t, err)
		assert.Empty(t, resp.Body)
	})

	t.Run("short body is an error", func(t *testing.T) {
		_, err := ReadResponse(reader("HTTP/1.0 200 OK\r\nContent-Length: 10\r\n\r\nhey"))
		assert.ErrorIs(t, err, ErrShortBody)
	})

	t.Run("oversized content length is rejected", func(t *testing.T) {
		_, err := ReadResponse(reader("HTTP/1.0 200 OK\r\nContent-Length: 999999999\r\n\r\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("empty stream is an error", func(t *testing.T) {
		_, err := ReadResponse(reader(""))
		assert.Error(t, err)
	})

	t.Run("message carries body and resource", func(t *testing.T) {
		resp, err := ReadResponse(reader("HTTP/1.0 200 OK\r\nContent-Length: 4\r\n\r\nping"))
		require.NoError(t, err)
		msg, err := resp.Message("/queue/alice")
		require.NoError(t, err)
		assert.Equal(t, "/queue/alice", msg.Resource)
		assert.Equal(t, "ping", string(msg.Body))
	})
}
