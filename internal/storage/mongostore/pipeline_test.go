package mongostore

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func stageNames(p []bson.D) []string {
	names := make([]string, 0, len(p))
	for _, stage := range p {
		names = append(names, stage[0].Key)
	}
	return names
}

func TestPairPipelineShape(t *testing.T) {
	p := pairPipeline("a", "b")
	got := stageNames(p)
	want := []string{"$match", "$sort", "$lookup", "$unwind", "$lookup", "$unwind", "$lookup", "$unwind", "$project"}
	if len(got) != len(want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stage %d = %s, want %s", i, got[i], want[i])
		}
	}

	match := p[0][0].Value.(bson.M)
	or := match["$or"].(bson.A)
	if len(or) != 2 {
		t.Fatalf("expected both directions in $or, got %v", or)
	}
	if or[1].(bson.M)["senderId"] != "b" || or[1].(bson.M)["receiverId"] != "a" {
		t.Fatalf("reverse direction missing: %v", or[1])
	}

	sortStage := p[1][0].Value.(bson.D)
	if sortStage[0].Key != "timestamp" || sortStage[0].Value != 1 {
		t.Fatalf("pair pipeline must sort ascending by timestamp, got %v", sortStage)
	}
}

func TestParticipantPipelineSortsNewestFirstWithoutPost(t *testing.T) {
	p := participantPipeline("a")
	sortStage := p[1][0].Value.(bson.D)
	if sortStage[0].Key != "timestamp" || sortStage[0].Value != -1 {
		t.Fatalf("participant pipeline must sort descending, got %v", sortStage)
	}
	for _, stage := range p {
		if stage[0].Key != "$lookup" {
			continue
		}
		if stage[0].Value.(bson.M)["from"] == postsCollection {
			t.Fatalf("participant pipeline should not expand posts")
		}
	}
}

func TestLookupOneKeepsMissingReferences(t *testing.T) {
	stages := lookupOne(usersCollection, "senderId", "sender")
	unwind := stages[1][0].Value.(bson.M)
	if unwind["path"] != "$sender" || unwind["preserveNullAndEmptyArrays"] != true {
		t.Fatalf("unexpected unwind stage: %v", unwind)
	}
}
