package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/deusflow/musichub/internal/logger"
	"github.com/deusflow/musichub/internal/metrics"
	"github.com/deusflow/musichub/internal/notify"
	"github.com/deusflow/musichub/internal/storage"
)

var (
	errInvalidEmail = errors.New("please enter a valid email address")
	errInvalidPhone = errors.New("phone number must be in international format, e.g. +15551234567")

	e164       = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// normalizeEmail accepts a bare address only, lower-cased.
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
		return "", errInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// normalizePhone strips common separators and requires E.164.
func normalizePhone(raw string) (string, error) {
	p := phoneNoise.Replace(strings.TrimSpace(raw))
	if !e164.MatchString(p) {
		return "", errInvalidPhone
	}
	return p, nil
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	email, err := normalizeEmail(r.FormValue("email"))
	if err != nil {
		s.message(w, http.StatusBadRequest, "Subscription failed", err.Error())
		return
	}

	res, err := s.Emails.Add(r.Context(), email, clientIP(r), r.UserAgent())
	switch {
	case errors.Is(err, storage.ErrAlreadySubscribed):
		s.message(w, http.StatusConflict, "Already subscribed", email+" is already on the newsletter.")
		return
	case err != nil:
		logger.Error("Email subscription failed", "error", err)
		s.message(w, http.StatusInternalServerError, "Subscription failed", "Something went wrong. Please try again later.")
		return
	}
	if !res.Resend {
		metrics.Global.IncrementSubscriptions()
	}

	link := s.siteURL("/confirm/" + res.Token)
	if s.Mailer != nil {
		if err := s.Mailer.SendConfirmation(r.Context(), email, link); err != nil && !errors.Is(err, notify.ErrNotConfigured) {
			logger.Error("Confirmation email failed", "to", email, "error", err)
		}
	}
	s.message(w, http.StatusOK, "Check your inbox", fmt.Sprintf("We sent a confirmation link to %s.", email))
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	s.confirm(w, r, s.Emails, "Your newsletter subscription is confirmed. Welcome aboard!")
}

func (s *Server) handleSMSConfirm(w http.ResponseWriter, r *http.Request) {
	s.confirm(w, r, s.Phones, "SMS alerts are on. Reply STOP to any message to unsubscribe.")
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request, list SubscriberList, done string) {
	ok, err := list.Confirm(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		logger.Error("Confirmation failed", "error", err)
		s.message(w, http.StatusInternalServerError, "Confirmation failed", "Something went wrong. Please try again later.")
		return
	}
	if !ok {
		s.message(w, http.StatusNotFound, "Link not valid", "This confirmation link is invalid or was already used.")
		return
	}
	metrics.Global.IncrementConfirmations()
	s.message(w, http.StatusOK, "Confirmed", done)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email, err := normalizeEmail(r.FormValue("email"))
	if err != nil {
		s.message(w, http.StatusBadRequest, "Unsubscribe failed", err.Error())
		return
	}
	removed, err := s.Emails.Unsubscribe(r.Context(), email)
	if err != nil {
		logger.Error("Unsubscribe failed", "error", err)
		s.message(w, http.StatusInternalServerError, "Unsubscribe failed", "Something went wrong. Please try again later.")
		return
	}
	if !removed {
		s.message(w, http.StatusNotFound, "Not subscribed", email+" is not on the newsletter.")
		return
	}
	s.message(w, http.StatusOK, "Unsubscribed", email+" will no longer receive the newsletter.")
}

func (s *Server) handleSMSSubscribe(w http.ResponseWriter, r *http.Request) {
	if s.Phones == nil {
		s.message(w, http.StatusServiceUnavailable, "SMS unavailable", "SMS alerts are not available right now.")
		return
	}
	phone, err := normalizePhone(r.FormValue("phone"))
	if err != nil {
		s.message(w, http.StatusBadRequest, "Subscription failed", err.Error())
		return
	}

	res, err := s.Phones.Add(r.Context(), phone, clientIP(r), r.UserAgent())
	switch {
	case errors.Is(err, storage.ErrAlreadySubscribed):
		s.message(w, http.StatusConflict, "Already subscribed", "This number already receives alerts.")
		return
	case err != nil:
		logger.Error("SMS subscription failed", "error", err)
		s.message(w, http.StatusInternalServerError, "Subscription failed", "Something went wrong. Please try again later.")
		return
	}
	if !res.Resend {
		metrics.Global.IncrementSubscriptions()
	}

	link := s.siteURL("/sms/confirm/" + res.Token)
	body := fmt.Sprintf("%s: confirm breaking news alerts here: %s", s.Config.SiteName, link)
	if s.SMS != nil {
		if _, err := s.SMS.Send(r.Context(), phone, body); err != nil && !errors.Is(err, notify.ErrNotConfigured) {
			metrics.Global.IncrementSMSFailed()
			logger.Error("Confirmation SMS failed", "error", err)
			s.message(w, http.StatusBadGateway, "Subscription failed", "We could not text that number. Please check it and try again.")
			return
		} else if err == nil {
			metrics.Global.IncrementSMSSent()
		}
	}
	s.message(w, http.StatusOK, "Check your phone", "We texted you a confirmation link.")
}
