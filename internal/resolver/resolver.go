package resolver

import (
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/famomatic/ytcipher/internal/innertube"
	"github.com/famomatic/ytcipher/internal/playerjs"
	"github.com/famomatic/ytcipher/internal/sandbox"
	"github.com/famomatic/ytcipher/internal/types"
)

// Format is the raw stream descriptor the resolver mutates.
type Format = innertube.Format

// LongSignatureThreshold is the length from which a signature already present
// in a URL is assumed to still be enciphered.
const LongSignatureThreshold = 80

const defaultSignatureParam = "sig"

// Programs are the transforms applied to one batch. Either may be nil.
type Programs struct {
	Decipher   sandbox.Program
	NTransform sandbox.Program

	Log logrus.FieldLogger
	// OnFailure is called when a transform fails at run time.
	OnFailure func(kind sandbox.Kind, err error)
}

// FromFunctions adapts the compiled transforms of a player script.
func FromFunctions(fns *playerjs.Functions) Programs {
	if fns == nil {
		return Programs{}
	}
	return Programs{Decipher: fns.Decipher, NTransform: fns.NTransform}
}

func (p Programs) log() logrus.FieldLogger {
	if p.Log == nil {
		return types.DiscardLogger()
	}
	return p.Log
}

func (p Programs) failed(kind sandbox.Kind, err error) {
	if p.OnFailure != nil {
		p.OnFailure(kind, err)
	}
}

// Resolve computes the playable URL of f. On success URL is set, the cipher
// fields are cleared and Resolved is true. On failure ResolveErr is set and
// URL is left untouched. A format is resolved at most once; later calls
// return the recorded outcome.
func Resolve(f *Format, progs Programs) error {
	if f == nil {
		return nil
	}
	if f.Resolved || f.ResolveErr != nil {
		return f.ResolveErr
	}
	resolved, err := resolveURL(f, progs)
	if err != nil {
		f.ResolveErr = err
		return err
	}
	f.URL = resolved
	f.SignatureCipher = ""
	f.Cipher = ""
	f.S = ""
	f.SP = ""
	f.Resolved = true
	return nil
}

func resolveURL(f *Format, progs Programs) (string, error) {
	rawURL, s, sp := f.URL, f.S, f.SP
	if blob := firstNonEmpty(f.SignatureCipher, f.Cipher); blob != "" {
		params, err := url.ParseQuery(blob)
		if err != nil {
			return "", &MalformedCipherPayloadError{Itag: f.Itag, Payload: blob, Err: err}
		}
		rawURL = params.Get("url")
		if rawURL == "" {
			return "", &MalformedCipherPayloadError{Itag: f.Itag, Payload: blob, Err: ErrMissingURL}
		}
		s, sp = params.Get("s"), params.Get("sp")
	}
	if strings.TrimSpace(rawURL) == "" {
		return "", ErrNoURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &MalformedCipherPayloadError{Itag: f.Itag, Payload: rawURL, Err: err}
	}
	q := parseQuery(u.RawQuery)
	log := progs.log().WithField("itag", f.Itag)

	// Signatures already in the URL are checked before the payload signature
	// is written so a fresh decipher result is never run twice.
	repairSignature(q, progs, log)

	if s != "" {
		if progs.Decipher == nil {
			return "", &SignatureError{Itag: f.Itag, Err: ErrNoDecipher}
		}
		sig, err := progs.Decipher.Run(s)
		if err != nil {
			progs.failed(sandbox.KindSignature, err)
			return "", &SignatureError{Itag: f.Itag, Err: err}
		}
		if sp == "" {
			sp = defaultSignatureParam
		}
		q.Set(sp, sig)
	}

	applyN(q, progs, log)
	if !q.changed {
		return rawURL, nil
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// repairSignature deciphers signature values that look enciphered. Failures
// keep the original value.
func repairSignature(q *query, progs Programs, log logrus.FieldLogger) {
	if progs.Decipher == nil {
		return
	}
	if embedded := q.Get("s"); embedded != "" {
		if sig, err := progs.Decipher.Run(embedded); err == nil {
			key := q.Get("sp")
			if key == "" {
				key = defaultSignatureParam
			}
			q.Del("s")
			q.Del("sp")
			q.Set(key, sig)
		} else {
			log.WithError(err).Debug("embedded s parameter left as is")
		}
	}
	for _, key := range []string{"sig", "signature"} {
		v := q.Get(key)
		if len(v) < LongSignatureThreshold {
			continue
		}
		sig, err := progs.Decipher.Run(v)
		if err != nil {
			log.WithError(err).WithField("param", key).Debug("long signature left as is")
			continue
		}
		q.Set(key, sig)
	}
}

func applyN(q *query, progs Programs, log logrus.FieldLogger) {
	n := q.Get("n")
	if n == "" {
		return
	}
	if progs.NTransform == nil {
		log.Debug("no n transform; url may be throttled")
		return
	}
	out, err := progs.NTransform.Run(n)
	if err != nil {
		progs.failed(sandbox.KindN, err)
		log.WithError(err).Warn("n transform failed; keeping original n")
		return
	}
	q.Set("n", out)
}

// ResolveAll resolves every format independently and returns the playable
// ones in input order. Failures are recorded on the formats.
func ResolveAll(formats []*Format, progs Programs) []*Format {
	out := make([]*Format, 0, len(formats))
	for _, f := range formats {
		if f == nil {
			continue
		}
		if err := Resolve(f, progs); err != nil {
			progs.log().WithFields(logrus.Fields{"itag": f.Itag, "client": f.SourceClient}).WithError(err).Debug("format dropped")
			continue
		}
		out = append(out, f)
	}
	return out
}

// DecipherFormats resolves formats and indexes the playable ones by URL.
func DecipherFormats(formats []*Format, progs Programs) map[string]*Format {
	resolved := ResolveAll(formats, progs)
	out := make(map[string]*Format, len(resolved))
	for _, f := range resolved {
		out[f.URL] = f
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
