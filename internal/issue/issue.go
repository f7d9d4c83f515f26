// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"errors"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a registered issue guide.
type Id int

const (
	BindFailedId Id = iota + 1
	PortInUseId
	PermissionDeniedId
	ConfigLoadFailedId
	ConfigInvalidId
	UnknownCodecId
	ConnectFailedId
	IllegalStateId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the guide with glamour using the given style ("dark",
// "light", "notty" or a JSON style path).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(slices.Clone(i.docLinks), i.extLinks...) {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	bindFailedIssue = &Issue{
		id: BindFailedId,
		mdMsg: `
# Failed to start the server!

The listening socket could not be bound. The server is back in its
created state and nothing is listening.

## Things you can try:
- Check that the host address belongs to this machine
- Run with verbose mode to see the underlying socket error:
~~~
$ tcpcore --verbose serve
~~~`,
	}

	portInUseIssue = &Issue{
		id: PortInUseId,
		mdMsg: `
# Port already in use!

Another process is already listening on the requested port.

## Things you can try:
- Find the process holding the port:
~~~
$ ss -ltnp 'sport = :7070'
~~~
- Pick a different port, or let the kernel choose one:
~~~
$ tcpcore serve --port 0
~~~
- Share the port between instances with SO_REUSEPORT (Linux and BSD only):
~~~toml
[server]
reuse_port = true
~~~`,
		extLinks: []HttpLink{"https://man7.org/linux/man-pages/man7/socket.7.html"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

Ports below 1024 are privileged on most systems.

## Things you can try:
- Use an unprivileged port such as 7070
- Grant the binary the bind capability:
~~~
$ sudo setcap 'cap_net_bind_service=+ep' $(which tcpcore)
~~~`,
		extLinks: []HttpLink{"https://man7.org/linux/man-pages/man7/capabilities.7.html"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the tcpcore configuration file.

## Configuration file locations:
- Linux: ~/.config/tcpcore/config.cue
- macOS: ~/Library/Application Support/tcpcore/config.cue
- Windows: %APPDATA%\tcpcore\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ tcpcore config init
~~~
- Show the configuration currently in effect:
~~~
$ tcpcore config show
~~~`,
	}

	configInvalidIssue = &Issue{
		id: ConfigInvalidId,
		mdMsg: `
# Invalid configuration!

The configuration does not satisfy the schema.

## Example configuration:
~~~cue
server: {
  host:  "127.0.0.1"
  port:  7070
  codec: "lines"
}
log: level: "info"
~~~

Environment variables override the file, e.g. ` + "`TCPCORE_SERVER_PORT=9000`" + `.`,
	}

	unknownCodecIssue = &Issue{
		id: UnknownCodecId,
		mdMsg: `
# Unknown codec!

## Valid codecs:
- **raw**: passes chunks of bytes through unchanged
- **lines**: newline delimited text
- **frames**: length prefixed frames with optional zstd compression`,
	}

	connectFailedIssue = &Issue{
		id: ConnectFailedId,
		mdMsg: `
# Could not connect!

No server accepted the connection at the given address.

## Things you can try:
- Start a server first:
~~~
$ tcpcore serve --port 7070
~~~
- Make sure client and server use the same codec`,
	}

	illegalStateIssue = &Issue{
		id: IllegalStateId,
		mdMsg: `
# Illegal server state!

A server can be started once and shut down once. The operation was
attempted in a state that does not allow it.`,
	}

	issues = map[Id]*Issue{
		bindFailedIssue.Id():       bindFailedIssue,
		portInUseIssue.Id():        portInUseIssue,
		permissionDeniedIssue.Id(): permissionDeniedIssue,
		configLoadFailedIssue.Id(): configLoadFailedIssue,
		configInvalidIssue.Id():    configInvalidIssue,
		unknownCodecIssue.Id():     unknownCodecIssue,
		connectFailedIssue.Id():    connectFailedIssue,
		illegalStateIssue.Id():     illegalStateIssue,
	}
)

// Values returns every registered issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// FromError returns the issue linked to the first ActionableError in err's
// chain, or nil.
func FromError(err error) *Issue {
	var ae *ActionableError
	if !errors.As(err, &ae) || ae.Issue == 0 {
		return nil
	}
	return Get(ae.Issue)
}
