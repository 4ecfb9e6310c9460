package entities

import (
	"encoding/binary"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/sha3"
)

const voterRecordSeed = "voter"

type VoterRecord struct {
	RecordID        string
	VoterID         string
	ElectionID      string
	VotesCastCount  int
	VotedCandidates []int
}

// NewVoterRecord returns the empty record a voter starts with.
func NewVoterRecord(voterID string, electionID string) VoterRecord {
	return VoterRecord{
		RecordID:        VoterRecordID(voterID, electionID),
		VoterID:         voterID,
		ElectionID:      electionID,
		VotedCandidates: []int{},
	}
}

func (r VoterRecord) Clone() VoterRecord {
	out := r
	out.VotedCandidates = append([]int{}, r.VotedCandidates...)
	return out
}

func (r VoterRecord) HasVotedFor(index int) bool {
	for _, voted := range r.VotedCandidates {
		if voted == index {
			return true
		}
	}
	return false
}

// VoterRecordID derives the record identity for (voter, election). Each part
// is length-prefixed so distinct pairs never hash the same input.
func VoterRecordID(voterID string, electionID string) string {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(voterRecordSeed))
	writeLengthPrefixed(hasher, voterID)
	writeLengthPrefixed(hasher, electionID)
	return hex.EncodeToString(hasher.Sum(nil))
}

func writeLengthPrefixed(w io.Writer, value string) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(value)))
	w.Write(size[:])
	w.Write([]byte(value))
}
