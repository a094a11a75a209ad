package radius

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
	"layeh.com/radius/rfc2866"
	"layeh.com/radius/rfc2869"

	"github.com/wisprad/backend/internal/database"
	"github.com/wisprad/backend/internal/models"
)

// Server terminates RADIUS authentication and accounting over UDP.
type Server struct {
	authAddr string
	acctAddr string
	debug    bool

	mu      sync.RWMutex
	secrets map[string][]byte // NAS IP -> Secret

	dropped uint64 // datagrams refused before decoding (unknown/inactive NAS)

	authServer *radius.PacketServer
	acctServer *radius.PacketServer
}

// NewServer creates a new RADIUS server listening on the given UDP ports
func NewServer(authPort, acctPort int, debug bool) *Server {
	return &Server{
		authAddr: fmt.Sprintf(":%d", authPort),
		acctAddr: fmt.Sprintf(":%d", acctPort),
		debug:    debug,
		secrets:  make(map[string][]byte),
	}
}

// LoadSecrets refreshes the NAS secret cache from the store. Called at
// startup, periodically, and after NAS mutations through the admin API.
func (s *Server) LoadSecrets() error {
	var nasList []models.Nas
	if err := database.DB.Where("is_active = ?", true).Find(&nasList).Error; err != nil {
		return err
	}

	secrets := make(map[string][]byte, len(nasList))
	for _, nas := range nasList {
		secrets[nas.IPAddress] = []byte(nas.Secret)
	}

	s.mu.Lock()
	s.secrets = secrets
	s.mu.Unlock()

	log.Printf("Loaded %d NAS secrets", len(secrets))
	return nil
}

// GetSecret resolves the shared secret for a sender address. An unknown or
// inactive NAS yields an error, which makes the packet server drop the
// datagram without a reply (no Access-Reject to unknown sources).
func (s *Server) GetSecret(remoteAddr net.Addr) ([]byte, error) {
	host, _, err := net.SplitHostPort(remoteAddr.String())
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	secret, ok := s.secrets[host]
	s.mu.RUnlock()
	if ok {
		return secret, nil
	}

	// Cache miss: the NAS may have been registered since the last reload
	var nas models.Nas
	if err := database.DB.Where("ip_address = ? AND is_active = ?", host, true).First(&nas).Error; err != nil {
		atomic.AddUint64(&s.dropped, 1)
		return nil, fmt.Errorf("unknown NAS: %s", host)
	}

	secret = []byte(nas.Secret)
	s.mu.Lock()
	s.secrets[host] = secret
	s.mu.Unlock()
	return secret, nil
}

// DroppedPackets returns how many datagrams were refused at secret lookup
// (unknown or inactive NAS). Malformed datagrams from a known NAS are
// discarded inside the packet server and are not counted here.
func (s *Server) DroppedPackets() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// SecretSource implements the radius.SecretSource interface
type SecretSource struct {
	server *Server
}

func (ss SecretSource) RADIUSSecret(ctx context.Context, remoteAddr net.Addr) ([]byte, error) {
	return ss.server.GetSecret(remoteAddr)
}

// Start binds both UDP sockets and begins serving. Bind failures are
// returned so the caller can abort startup; per-packet errors are logged.
func (s *Server) Start() error {
	if err := s.LoadSecrets(); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	secretSource := SecretSource{server: s}

	authConn, err := net.ListenPacket("udp4", s.authAddr)
	if err != nil {
		return fmt.Errorf("auth listener bind failed: %w", err)
	}
	acctConn, err := net.ListenPacket("udp4", s.acctAddr)
	if err != nil {
		authConn.Close()
		return fmt.Errorf("acct listener bind failed: %w", err)
	}

	s.authServer = &radius.PacketServer{
		SecretSource: secretSource,
		Handler:      radius.HandlerFunc(s.handleAuth),
	}
	s.acctServer = &radius.PacketServer{
		SecretSource: secretSource,
		Handler:      radius.HandlerFunc(s.handleAcct),
	}

	go func() {
		log.Printf("Starting RADIUS auth server on %s", s.authAddr)
		if err := s.authServer.Serve(authConn); err != nil && !errors.Is(err, radius.ErrServerShutdown) {
			log.Printf("Auth server error: %v", err)
		}
	}()

	go func() {
		log.Printf("Starting RADIUS acct server on %s", s.acctAddr)
		if err := s.acctServer.Serve(acctConn); err != nil && !errors.Is(err, radius.ErrServerShutdown) {
			log.Printf("Acct server error: %v", err)
		}
	}()

	return nil
}

// Shutdown stops accepting datagrams and waits for in-flight handlers
// until the context expires.
func (s *Server) Shutdown(ctx context.Context) {
	if s.authServer != nil {
		s.authServer.Shutdown(ctx)
	}
	if s.acctServer != nil {
		s.acctServer.Shutdown(ctx)
	}
}

// userCacheEntry carries credential material that the model deliberately
// hides from JSON serialization.
type userCacheEntry struct {
	User     models.User `json:"user"`
	NTHash   string      `json:"nt_hash"`
	Password string      `json:"password"`
}

func (s *Server) getUser(username string) (*models.User, error) {
	var entry userCacheEntry
	if database.CacheGet(database.CacheKeyUser+username, &entry) {
		user := entry.User
		user.NTHash = entry.NTHash
		user.Password = entry.Password
		return &user, nil
	}

	var user models.User
	if err := database.DB.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}

	database.CacheSet(database.CacheKeyUser+username,
		userCacheEntry{User: user, NTHash: user.NTHash, Password: user.Password},
		database.CacheTTLUser)
	return &user, nil
}

// handleAuth handles Access-Request packets
func (s *Server) handleAuth(w radius.ResponseWriter, r *radius.Request) {
	startTime := time.Now()

	username := rfc2865.UserName_GetString(r.Packet)
	callingStationID := rfc2865.CallingStationID_GetString(r.Packet)
	nasIP := remoteHost(r.RemoteAddr)

	if s.debug {
		log.Printf("Auth request: user=%s, nas=%s, mac=%s", username, nasIP, callingStationID)
	}

	reject := func(method, reason string) {
		log.Printf("Auth reject (%s): %s", reason, username)
		s.logAuth(username, callingStationID, nasIP, method, "Access-Reject", reason)

		response := r.Response(radius.CodeAccessReject)
		if username != "" {
			rfc2865.UserName_SetString(response, username)
		}
		w.Write(response)
	}

	if username == "" {
		reject("", "missing User-Name")
		return
	}

	user, err := s.getUser(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			reject("", "user not found")
		} else {
			log.Printf("Auth: store error looking up %s: %v", username, err)
			reject("", "store error")
		}
		return
	}
	if !user.IsActive {
		reject("", "user inactive")
		return
	}
	if user.IsExpired() {
		reject("", "user expired")
		return
	}

	ntHash, err := hex.DecodeString(user.NTHash)
	if err != nil || len(ntHash) != 16 {
		log.Printf("Auth: corrupt NT hash for %s", username)
		reject("", "corrupt credential")
		return
	}

	// Method selection, first match wins: MS-CHAPv2, MS-CHAP, CHAP, PAP
	var method string
	var mschap2Success []byte

	msChallenge := GetVSA(r.Packet, VendorMicrosoft, MSCHAPChallenge)
	mschap2Response := GetVSA(r.Packet, VendorMicrosoft, MSCHAP2Response)
	mschapResponse := GetVSA(r.Packet, VendorMicrosoft, MSCHAPResponse)
	chapPassword := rfc2865.CHAPPassword_Get(r.Packet)
	_, papErr := rfc2865.UserPassword_Lookup(r.Packet)

	switch {
	case msChallenge != nil && mschap2Response != nil:
		method = "mschapv2"
		ok, success := VerifyMSCHAP2(username, ntHash, msChallenge, mschap2Response)
		if !ok {
			reject(method, "mschapv2 verification failed")
			return
		}
		mschap2Success = success

	case msChallenge != nil && mschapResponse != nil:
		method = "mschap"
		if !VerifyMSCHAP(msChallenge, mschapResponse, ntHash) {
			reject(method, "mschap verification failed")
			return
		}

	case len(chapPassword) > 0:
		method = "chap"
		if !user.StoreCleartext || user.Password == "" {
			reject(method, "chap requires stored cleartext")
			return
		}
		challenge := rfc2865.CHAPChallenge_Get(r.Packet)
		if len(challenge) == 0 {
			// RFC 2865: the Request Authenticator serves as the challenge
			challenge = r.Packet.Authenticator[:]
		}
		if !VerifyCHAP(chapPassword, challenge, user.Password) {
			reject(method, "chap verification failed")
			return
		}

	case papErr == nil:
		method = "pap"
		password := rfc2865.UserPassword_GetString(r.Packet)
		if subtle.ConstantTimeCompare(NTPasswordHash(password), ntHash) != 1 {
			reject(method, "wrong password")
			return
		}

	default:
		reject("", "no supported method")
		return
	}

	response := r.Response(radius.CodeAccessAccept)
	rfc2865.UserName_SetString(response, username)

	s.applyProfile(response, user.ProfileName)

	if len(mschap2Success) > 0 {
		AddVSA(response, VendorMicrosoft, MSCHAP2Success, mschap2Success)
	}

	s.logAuth(username, callingStationID, nasIP, method, "Access-Accept", "")
	if s.debug {
		log.Printf("Auth accept: %s via %s (%.2fms)", username, method,
			float64(time.Since(startTime).Microseconds())/1000)
	} else {
		log.Printf("Auth accept: %s via %s", username, method)
	}

	w.Write(response)
}

// applyProfile attaches the reply attributes derived from the user's
// profile. A dangling profile reference means no extra attributes.
func (s *Server) applyProfile(response *radius.Packet, profileName string) {
	if profileName == "" {
		return
	}

	var profile models.Profile
	if err := database.DB.Where("name = ?", profileName).First(&profile).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Auth: profile lookup failed for %s: %v", profileName, err)
		}
		return
	}

	if profile.Name != models.DefaultProfileName {
		rfc2865.FilterID_SetString(response, profile.Name)
		AddVSA(response, VendorMikrotik, MikrotikGroup, []byte(profile.Name))
	}
	if profile.SessionTimeout > 0 {
		rfc2865.SessionTimeout_Set(response, rfc2865.SessionTimeout(profile.SessionTimeout))
	}
	if profile.IdleTimeout > 0 {
		rfc2865.IdleTimeout_Set(response, rfc2865.IdleTimeout(profile.IdleTimeout))
	}
	if profile.RateLimit != "" {
		AddVSA(response, VendorMikrotik, MikrotikRateLimit, []byte(profile.RateLimit))
	}
}

// handleAcct handles Accounting-Request packets
func (s *Server) handleAcct(w radius.ResponseWriter, r *radius.Request) {
	username := rfc2865.UserName_GetString(r.Packet)
	statusType := rfc2866.AcctStatusType_Get(r.Packet)
	sessionID := rfc2866.AcctSessionID_GetString(r.Packet)
	callingStationID := rfc2865.CallingStationID_GetString(r.Packet)
	framedIP := ipString(rfc2865.FramedIPAddress_Get(r.Packet))
	sessionTime := int64(rfc2866.AcctSessionTime_Get(r.Packet))

	nasIP := ipString(rfc2865.NASIPAddress_Get(r.Packet))
	if nasIP == "" {
		nasIP = remoteHost(r.RemoteAddr)
	}

	inputOctets := totalOctets(
		uint32(rfc2866.AcctInputOctets_Get(r.Packet)),
		uint32(rfc2869.AcctInputGigawords_Get(r.Packet)))
	outputOctets := totalOctets(
		uint32(rfc2866.AcctOutputOctets_Get(r.Packet)),
		uint32(rfc2869.AcctOutputGigawords_Get(r.Packet)))

	if s.debug {
		log.Printf("Acct request: user=%s, type=%s, session=%s", username, statusName(statusType), sessionID)
	}

	now := time.Now()

	// One log row per request, regardless of status type
	record := models.AcctRecord{
		SessionID:    sessionID,
		Username:     username,
		StatusType:   statusName(statusType),
		NasIPAddress: nasIP,
		FramedIP:     framedIP,
		MACAddress:   callingStationID,
		SessionTime:  sessionTime,
		InputOctets:  inputOctets,
		OutputOctets: outputOctets,
	}

	switch statusType {
	case rfc2866.AcctStatusType_Value_Start:
		if sessionID != "" {
			s.sessionStart(sessionID, username, nasIP, framedIP, callingStationID, now)
		}

	case rfc2866.AcctStatusType_Value_InterimUpdate:
		if sessionID != "" {
			s.sessionUpdate(sessionID, username, nasIP, framedIP, callingStationID,
				sessionTime, inputOctets, outputOctets, now)
		}

	case rfc2866.AcctStatusType_Value_Stop:
		cause := terminateCauseString(rfc2866.AcctTerminateCause_Get(r.Packet))
		record.TerminateCause = cause
		if sessionID != "" {
			s.sessionStop(sessionID, username, nasIP, framedIP, callingStationID,
				sessionTime, inputOctets, outputOctets, cause, now)
		}

	default:
		log.Printf("Acct: unhandled status type %d for %s (acknowledged)", statusType, username)
	}

	if err := database.DB.Create(&record).Error; err != nil {
		// Still acknowledge so the NAS does not retransmit forever
		log.Printf("Acct: failed to append log row for %s: %v", username, err)
	}

	w.Write(r.Response(radius.CodeAccountingResponse))
}

// sessionStart inserts a session row, or restarts an existing one: restart
// clears stop_time, resets start_time and zeroes the counters.
func (s *Server) sessionStart(sessionID, username, nasIP, framedIP, mac string, now time.Time) {
	sess := models.Session{
		SessionID:    sessionID,
		Username:     username,
		NasIPAddress: nasIP,
		FramedIP:     framedIP,
		MACAddress:   mac,
		StartTime:    now,
		UpdateTime:   &now,
	}
	if err := database.DB.Create(&sess).Error; err == nil {
		return
	}

	// Unique index hit: the session id exists, treat as restart
	err := database.DB.Model(&models.Session{}).Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"username":        username,
			"nas_ip_address":  nasIP,
			"framed_ip":       framedIP,
			"mac_address":     mac,
			"start_time":      now,
			"update_time":     now,
			"stop_time":       nil,
			"session_time":    0,
			"input_octets":    0,
			"output_octets":   0,
			"terminate_cause": "",
		}).Error
	if err != nil {
		log.Printf("Acct: session restart failed for %s: %v", sessionID, err)
	}
}

// sessionUpdate applies an interim update. Counters only move forward so
// reordered retransmissions cannot roll them back. A missing row (missed
// Start, e.g. after a server restart) is created with an estimated start.
func (s *Server) sessionUpdate(sessionID, username, nasIP, framedIP, mac string,
	sessionTime, inputOctets, outputOctets int64, now time.Time) {

	res := database.DB.Model(&models.Session{}).Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"update_time":   now,
			"framed_ip":     framedIP,
			"session_time":  gorm.Expr("MAX(session_time, ?)", sessionTime),
			"input_octets":  gorm.Expr("MAX(input_octets, ?)", inputOctets),
			"output_octets": gorm.Expr("MAX(output_octets, ?)", outputOctets),
		})
	if res.Error != nil {
		log.Printf("Acct: interim update failed for %s: %v", sessionID, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		return
	}

	estimatedStart := now.Add(-time.Duration(sessionTime) * time.Second)
	sess := models.Session{
		SessionID:    sessionID,
		Username:     username,
		NasIPAddress: nasIP,
		FramedIP:     framedIP,
		MACAddress:   mac,
		StartTime:    estimatedStart,
		UpdateTime:   &now,
		SessionTime:  sessionTime,
		InputOctets:  inputOctets,
		OutputOctets: outputOctets,
	}
	if err := database.DB.Create(&sess).Error; err != nil {
		// Lost the insert race against another handler; the row exists now
		if err := database.DB.Model(&models.Session{}).Where("session_id = ?", sessionID).
			Updates(map[string]interface{}{
				"update_time":   now,
				"session_time":  gorm.Expr("MAX(session_time, ?)", sessionTime),
				"input_octets":  gorm.Expr("MAX(input_octets, ?)", inputOctets),
				"output_octets": gorm.Expr("MAX(output_octets, ?)", outputOctets),
			}).Error; err != nil {
			log.Printf("Acct: interim upsert failed for %s: %v", sessionID, err)
		}
	}
}

// sessionStop closes a session. A duplicate Stop keeps the original
// stop_time; a Stop without any prior row still records the session.
func (s *Server) sessionStop(sessionID, username, nasIP, framedIP, mac string,
	sessionTime, inputOctets, outputOctets int64, cause string, now time.Time) {

	res := database.DB.Model(&models.Session{}).Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"update_time":     now,
			"stop_time":       gorm.Expr("COALESCE(stop_time, ?)", now),
			"session_time":    gorm.Expr("MAX(session_time, ?)", sessionTime),
			"input_octets":    gorm.Expr("MAX(input_octets, ?)", inputOctets),
			"output_octets":   gorm.Expr("MAX(output_octets, ?)", outputOctets),
			"terminate_cause": cause,
		})
	if res.Error != nil {
		log.Printf("Acct: stop failed for %s: %v", sessionID, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		return
	}

	estimatedStart := now.Add(-time.Duration(sessionTime) * time.Second)
	sess := models.Session{
		SessionID:      sessionID,
		Username:       username,
		NasIPAddress:   nasIP,
		FramedIP:       framedIP,
		MACAddress:     mac,
		StartTime:      estimatedStart,
		UpdateTime:     &now,
		StopTime:       &now,
		SessionTime:    sessionTime,
		InputOctets:    inputOctets,
		OutputOctets:   outputOctets,
		TerminateCause: cause,
	}
	if err := database.DB.Create(&sess).Error; err != nil {
		if err := database.DB.Model(&models.Session{}).Where("session_id = ?", sessionID).
			Updates(map[string]interface{}{
				"update_time":     now,
				"stop_time":       gorm.Expr("COALESCE(stop_time, ?)", now),
				"session_time":    gorm.Expr("MAX(session_time, ?)", sessionTime),
				"input_octets":    gorm.Expr("MAX(input_octets, ?)", inputOctets),
				"output_octets":   gorm.Expr("MAX(output_octets, ?)", outputOctets),
				"terminate_cause": cause,
			}).Error; err != nil {
			log.Printf("Acct: stop upsert failed for %s: %v", sessionID, err)
		}
	}
}

// logAuth appends one row to the authentication log
func (s *Server) logAuth(username, callingStationID, nasIP, method, reply, reason string) {
	entry := models.AuthLog{
		Username:         username,
		Reply:            reply,
		Method:           method,
		Reason:           reason,
		CallingStationID: callingStationID,
		NasIPAddress:     nasIP,
	}
	if err := database.DB.Create(&entry).Error; err != nil {
		log.Printf("Auth: failed to append auth log for %s: %v", username, err)
	}
}

// totalOctets reconstructs a 64-bit byte count from the 32-bit octet
// counter and its gigaword (2^32) overflow counter.
func totalOctets(octets, gigawords uint32) int64 {
	return int64(uint64(octets) + uint64(gigawords)<<32)
}

func remoteHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func ipString(ip net.IP) string {
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}

func statusName(t rfc2866.AcctStatusType) string {
	switch t {
	case rfc2866.AcctStatusType_Value_Start:
		return "Start"
	case rfc2866.AcctStatusType_Value_Stop:
		return "Stop"
	case rfc2866.AcctStatusType_Value_InterimUpdate:
		return "Interim-Update"
	case rfc2866.AcctStatusType_Value_AccountingOn:
		return "Accounting-On"
	case rfc2866.AcctStatusType_Value_AccountingOff:
		return "Accounting-Off"
	default:
		return fmt.Sprintf("Status-%d", t)
	}
}

// terminateCauseString maps RFC 2866 terminate causes to their dictionary
// names. An absent cause defaults to User-Request.
func terminateCauseString(c rfc2866.AcctTerminateCause) string {
	switch c {
	case 0, rfc2866.AcctTerminateCause_Value_UserRequest:
		return "User-Request"
	case rfc2866.AcctTerminateCause_Value_LostCarrier:
		return "Lost-Carrier"
	case rfc2866.AcctTerminateCause_Value_LostService:
		return "Lost-Service"
	case rfc2866.AcctTerminateCause_Value_IdleTimeout:
		return "Idle-Timeout"
	case rfc2866.AcctTerminateCause_Value_SessionTimeout:
		return "Session-Timeout"
	case rfc2866.AcctTerminateCause_Value_AdminReset:
		return "Admin-Reset"
	case rfc2866.AcctTerminateCause_Value_AdminReboot:
		return "Admin-Reboot"
	case rfc2866.AcctTerminateCause_Value_PortError:
		return "Port-Error"
	case rfc2866.AcctTerminateCause_Value_NASError:
		return "NAS-Error"
	case rfc2866.AcctTerminateCause_Value_NASRequest:
		return "NAS-Request"
	case rfc2866.AcctTerminateCause_Value_NASReboot:
		return "NAS-Reboot"
	default:
		return fmt.Sprintf("Cause-%d", c)
	}
}
