package referral

import (
	crand "crypto/rand"
	mathrand "math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/edupath/referral-backend/internal/models"
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultCodeLength is the fixed output length of generated codes.
const DefaultCodeLength = 12

// Per-kind salts. Ambassador and campus guide codes differ only by this
// internal constant, never by a visible pattern.
var kindSalts = map[models.CodeKind]uint32{
	models.CodeKindAmbassador:  0x5f3759df,
	models.CodeKindCampusGuide: 0x9e3779b9,
	models.CodeKindGeneral:     0x85ebca6b,
}

// Generate derives a referral code from identity inputs. The output is
// visually indistinguishable from random but is NOT cryptographically
// secure and NOT guaranteed unique: callers must check the store and
// regenerate on collision (see Issuer).
func Generate(email, name string, timestampMs int64, kind models.CodeKind) string {
	salt := kindSalts[kind]
	if salt == 0 {
		salt = kindSalts[models.CodeKindGeneral]
	}

	compactName := strings.Join(strings.Fields(name), "")

	segments := []string{
		base36(hashString(email)),
		base36(hashString(compactName)),
		trailingDigits(timestampMs, 4),
		randomSegment(4),
		base36(hashString(email+compactName) ^ salt),
	}

	// Interleave segments so no input dominates a fixed region of the code
	var b strings.Builder
	for i := 0; b.Len() < DefaultCodeLength*2; i++ {
		for _, seg := range segments {
			if i < len(seg) {
				b.WriteByte(seg[i])
			}
		}
		if i > 16 {
			break
		}
	}

	code := strings.ToUpper(b.String())
	code = stripNonAlnum(code)

	// Pad with random characters when the interleave came up short
	for len(code) < DefaultCodeLength {
		code += randomSegment(DefaultCodeLength - len(code))
	}

	return code[:DefaultCodeLength]
}

// hashString is a simple FNV-1a style hash. Obfuscation, not security.
func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func base36(v uint32) string {
	return strings.ToUpper(strconv.FormatUint(uint64(v), 36))
}

func trailingDigits(v int64, n int) string {
	s := strconv.FormatInt(v, 10)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// randomSegment returns n characters from the code charset, preferring the
// OS entropy source with a math/rand fallback
func randomSegment(n int) string {
	buf := make([]byte, n)
	if _, err := crand.Read(buf); err != nil {
		r := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
		for i := range buf {
			buf[i] = charset[r.Intn(len(charset))]
		}
		return string(buf)
	}
	for i := range buf {
		buf[i] = charset[int(buf[i])%len(charset)]
	}
	return string(buf)
}
