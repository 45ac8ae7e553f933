// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides participant identity checks and admin keys.

# Participant Identity

Participants are identified by an opaque ID sent in the X-Participant-ID
header by the chat front end. NormalizeParticipantID trims it and rejects
empty, oversized or control-character IDs.

# Admin Keys

Admin keys use HMAC-SHA256 over the participant ID:

	adminKey := auth.GenerateAdminKey(participantID, salt)
	err := auth.ValidateAdminKey(participantID, adminKey, salt)

The key is URL-safe base64 without padding. It is deterministic, so nothing
is stored; the operator prints it with the "adminkey" subcommand. A valid
key is necessary but not sufficient: the participant must also be listed in
the configured admin IDs.

# ID Generation

Random hex IDs, used for request IDs in logs:

	id, err := auth.GenerateID(8)  // 16 hex characters
*/
package auth
