// Package waproto holds small WhatsApp wire-format helpers shared by the
// transport adapter: stripping JID suffixes from inbound sender ids
// before they reach the FSM as a plain ids.UserRef.
package waproto

import "strings"

// jidSuffixes are the suffixes WhatsApp providers append to a bare phone
// number depending on transport (legacy web vs multi-device); Cloud API
// webhooks are usually already bare, but upstream proxies sometimes pass
// either shape through.
var jidSuffixes = []string{"@c.us", "@s.whatsapp.net", "@g.us"}

// CleanPhoneNumber strips any known WhatsApp JID suffix from phone,
// leaving a bare number suitable for ids.UserRef validation.
func CleanPhoneNumber(phone string) string {
	for _, suffix := range jidSuffixes {
		if strings.HasSuffix(phone, suffix) {
			return strings.TrimSuffix(phone, suffix)
		}
	}
	return phone
}
