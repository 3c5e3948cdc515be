package proxycmd

import (
	"strconv"
	"strings"
)

// Expand substitutes the ssh_config percent tokens into a ProxyCommand
// template: %h is the host, %p the port, %r the remote user, and %% a
// literal percent. Unrecognized tokens are left verbatim, like ssh, so a
// stray % in a user command is never corrupted. The scan is a single
// left-to-right pass, so the output of %% is never expanded again.
func Expand(template, host string, port uint16, user string) string {
	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); {
		c := template[i]
		if c != '%' || i+1 >= len(template) {
			b.WriteByte(c)
			i++
			continue
		}
		switch template[i+1] {
		case '%':
			b.WriteByte('%')
		case 'h':
			b.WriteString(host)
		case 'p':
			b.WriteString(strconv.Itoa(int(port)))
		case 'r':
			b.WriteString(user)
		default:
			b.WriteByte('%')
			b.WriteByte(template[i+1])
		}
		i += 2
	}
	return b.String()
}
